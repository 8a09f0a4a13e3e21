package mission

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNoValidPoints is returned when a mission file parses but contains no
// usable coordinates.
var ErrNoValidPoints = fmt.Errorf("mission file contains no valid points")

type missionFile struct {
	Waypoints []Point `json:"waypoints" yaml:"waypoints"`
}

// ParseFile reads a waypoint file and returns its raw point list in order.
// JSON files may be either a bare array of points or an object with a
// "waypoints" key; YAML files use the "waypoints" key. The points are not
// normalized here; feed them to Normalize.
func ParseFile(path string) ([]Point, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}

// ParseJSON decodes a JSON waypoint document.
func ParseJSON(data []byte) ([]Point, error) {
	var pts []Point
	if err := json.Unmarshal(data, &pts); err == nil {
		return nonEmpty(pts)
	}
	var f missionFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse mission JSON: %w", err)
	}
	return nonEmpty(f.Waypoints)
}

// ParseYAML decodes a YAML waypoint document.
func ParseYAML(data []byte) ([]Point, error) {
	var f missionFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse mission YAML: %w", err)
	}
	return nonEmpty(f.Waypoints)
}

func nonEmpty(pts []Point) ([]Point, error) {
	if len(pts) == 0 {
		return nil, ErrNoValidPoints
	}
	return pts, nil
}
