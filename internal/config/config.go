// YAML config loader with CUE validation integration
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"fleetconsole/internal/live"
	"fleetconsole/internal/sim"
)

// Duration wraps time.Duration so YAML values like "750ms" parse directly.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Tracking holds the tunables of the simulation engine and live ingestor.
type Tracking struct {
	TickInterval     Duration `yaml:"tick_interval"`
	TicksPerSegment  int      `yaml:"ticks_per_segment"`
	CruiseSpeedKmh   float64  `yaml:"cruise_speed_kmh"`
	BatteryFloorPct  float64  `yaml:"battery_floor_pct"`
	ProximityRadiusM float64  `yaml:"proximity_radius_m"`
	SpeedCeilingKmh  float64  `yaml:"speed_ceiling_kmh"`
	ReconnectDelay   Duration `yaml:"reconnect_delay"`
	PaletteSize      int      `yaml:"palette_size"`
}

// Server holds the HTTP API settings.
type Server struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Storage holds file paths for the drone registry and flight logs.
type Storage struct {
	RegistryDB string `yaml:"registry_db"`
	LogFile    string `yaml:"log_file"`
}

// ConsoleConfig is the root configuration of the fleet console.
type ConsoleConfig struct {
	Tracking Tracking `yaml:"tracking"`
	Server   Server   `yaml:"server"`
	Storage  Storage  `yaml:"storage"`
}

// Default returns the built-in configuration used when no file is given.
func Default() *ConsoleConfig {
	return &ConsoleConfig{
		Tracking: Tracking{
			TickInterval:     Duration(time.Second),
			TicksPerSegment:  20,
			CruiseSpeedKmh:   62,
			BatteryFloorPct:  8,
			ProximityRadiusM: 30,
			SpeedCeilingKmh:  180,
			ReconnectDelay:   Duration(3 * time.Second),
			PaletteSize:      8,
		},
		Server:  Server{ListenAddr: ":8080"},
		Storage: Storage{RegistryDB: "fleet.db"},
	}
}

// SimConfig maps the tracking tunables onto the simulation engine.
func (c *ConsoleConfig) SimConfig() sim.Config {
	return sim.Config{
		TickInterval:    time.Duration(c.Tracking.TickInterval),
		TicksPerSegment: c.Tracking.TicksPerSegment,
		CruiseSpeedKmh:  c.Tracking.CruiseSpeedKmh,
		BatteryFloorPct: c.Tracking.BatteryFloorPct,
	}
}

// LiveConfig maps the tracking tunables onto the live ingestor.
func (c *ConsoleConfig) LiveConfig() live.Config {
	return live.Config{
		ProximityRadiusM: c.Tracking.ProximityRadiusM,
		SpeedCeilingKmh:  c.Tracking.SpeedCeilingKmh,
		ReconnectDelay:   time.Duration(c.Tracking.ReconnectDelay),
	}
}

// Load loads YAML config and validates it against a CUE schema.
func Load(configPath, cueSchemaPath string) (*ConsoleConfig, error) {
	if cueSchemaPath != "" {
		if err := ValidateWithCue(configPath, cueSchemaPath); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LocateSchema resolves the CUE schema path for a config file. A relative
// path that does not exist from the working directory is retried next to the
// config file, so `serve --config some/dir/console.yaml` works from anywhere.
// An empty result means no schema was found and validation is skipped.
func LocateSchema(configPath, schemaPath string) string {
	if schemaPath == "" {
		return ""
	}
	if _, err := os.Stat(schemaPath); err == nil {
		return schemaPath
	}
	if !filepath.IsAbs(schemaPath) && configPath != "" {
		alt := filepath.Join(filepath.Dir(configPath), schemaPath)
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}
	return ""
}

// ValidateWithCue validates a YAML configuration file using a CUE schema file.
func ValidateWithCue(configFile, cueFile string) error {
	ctx := cuecontext.New()

	yamlBytes, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("cannot read YAML config: %w", err)
	}
	var configData map[string]interface{}
	if err := yaml.Unmarshal(yamlBytes, &configData); err != nil {
		return fmt.Errorf("cannot unmarshal YAML config: %w", err)
	}
	configVal := ctx.Encode(configData)

	schemaBytes, err := os.ReadFile(cueFile)
	if err != nil {
		return fmt.Errorf("cannot read CUE schema: %w", err)
	}
	schemaVal := ctx.CompileBytes(schemaBytes)
	if schemaVal.Err() != nil {
		return fmt.Errorf("cannot compile CUE schema: %w", schemaVal.Err())
	}

	if err := schemaVal.Subsume(configVal); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}
