// Persisted drone registry: the fleet roster the tracking view attaches from.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DroneRecord is one registered drone.
type DroneRecord struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Name      string     `gorm:"not null" json:"name"`
	Hostname  string     `json:"hostname"`
	Status    string     `json:"status"`
	Type      string     `json:"type"`
	Model     string     `json:"model"`
	Serial    string     `json:"serial"`
	Notes     string     `json:"notes"`
	LastPing  *time.Time `json:"last_ping"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ErrNotFound is returned when a drone id does not exist.
var ErrNotFound = errors.New("drone not found")

// Store wraps the SQLite-backed drone registry.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if necessary) the registry database at path and
// migrates the schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open registry db: %w", err)
	}
	if err := db.AutoMigrate(&DroneRecord{}); err != nil {
		return nil, fmt.Errorf("migrate registry db: %w", err)
	}
	return &Store{db: db}, nil
}

// ListDrones returns all registered drones ordered by name.
func (s *Store) ListDrones() ([]DroneRecord, error) {
	var drones []DroneRecord
	if err := s.db.Order("name").Find(&drones).Error; err != nil {
		return nil, err
	}
	return drones, nil
}

// GetDrone looks a drone up by id.
func (s *Store) GetDrone(id uint) (DroneRecord, error) {
	var d DroneRecord
	err := s.db.First(&d, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DroneRecord{}, ErrNotFound
	}
	return d, err
}

// CreateDrone registers a new drone.
func (s *Store) CreateDrone(d *DroneRecord) error {
	if strings.TrimSpace(d.Name) == "" {
		return errors.New("drone name is required")
	}
	if d.Status == "" {
		d.Status = "offline"
	}
	return s.db.Create(d).Error
}

// UpdateDrone applies the given field values to an existing drone.
func (s *Store) UpdateDrone(id uint, fields map[string]any) (DroneRecord, error) {
	if _, err := s.GetDrone(id); err != nil {
		return DroneRecord{}, err
	}
	if err := s.db.Model(&DroneRecord{}).Where("id = ?", id).Updates(fields).Error; err != nil {
		return DroneRecord{}, err
	}
	return s.GetDrone(id)
}

// DeleteDrone removes a drone from the registry.
func (s *Store) DeleteDrone(id uint) error {
	res := s.db.Delete(&DroneRecord{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping stamps the drone's last_ping and returns the updated record.
func (s *Store) Ping(id uint) (DroneRecord, error) {
	now := time.Now().UTC()
	return s.UpdateDrone(id, map[string]any{"last_ping": &now, "status": "online"})
}

// ConnectionResult reports the outcome of a connectivity probe.
type ConnectionResult struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"status_code,omitempty"`
	Error      string `json:"error,omitempty"`
	Body       string `json:"body,omitempty"`
}

// TestConnection probes a drone hostname over HTTP before the live stream is
// trusted. Probe failures are operator-visible notices, never fatal.
func TestConnection(ctx context.Context, hostname string) ConnectionResult {
	url := hostname
	if !strings.Contains(url, "://") {
		url = "http://" + url
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ConnectionResult{Error: err.Error()}
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return ConnectionResult{Error: err.Error()}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return ConnectionResult{
		Success:    resp.StatusCode < 400,
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}
}
