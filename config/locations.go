package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"propure/server/internal/models"
)

// LocationsFile is the on-disk layout of the scrape location seed list.
type LocationsFile struct {
	Locations []LocationEntry `yaml:"locations"`
}

type LocationEntry struct {
	Suburb   string `yaml:"suburb"`
	State    string `yaml:"state"`
	Postcode string `yaml:"postcode"`
}

var (
	seedLocations []models.ScrapeLocation
	seedLock      sync.RWMutex
)

// LoadLocations reads and caches the location seed list from path.
func LoadLocations(path string) ([]models.ScrapeLocation, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read locations file: %w", err)
	}

	locations, err := ParseLocations(data)
	if err != nil {
		return nil, err
	}

	seedLock.Lock()
	seedLocations = locations
	seedLock.Unlock()

	return locations, nil
}

// ParseLocations decodes YAML location entries, normalizing names and dropping duplicates.
func ParseLocations(data []byte) ([]models.ScrapeLocation, error) {
	var file LocationsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse locations: %w", err)
	}

	seen := make(map[string]bool)
	locations := make([]models.ScrapeLocation, 0, len(file.Locations))
	for i, entry := range file.Locations {
		suburb := strings.TrimSpace(entry.Suburb)
		postcode := strings.TrimSpace(entry.Postcode)
		state := NormalizeState(entry.State)
		if suburb == "" || postcode == "" || state == "" {
			return nil, fmt.Errorf("location %d: suburb, state and postcode are required", i)
		}
		if _, ok := StateCBDs[state]; !ok {
			return nil, fmt.Errorf("location %d: unknown state %q", i, entry.State)
		}

		loc := models.ScrapeLocation{Suburb: suburb, State: state, Postcode: postcode}
		if seen[loc.Key()] {
			continue
		}
		seen[loc.Key()] = true
		locations = append(locations, loc)
	}
	return locations, nil
}

// SeedLocations returns a copy of the last loaded seed list.
func SeedLocations() []models.ScrapeLocation {
	seedLock.RLock()
	defer seedLock.RUnlock()

	out := make([]models.ScrapeLocation, len(seedLocations))
	copy(out, seedLocations)
	return out
}
