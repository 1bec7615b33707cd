package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"grocery-price-compare/models"
)

// WriteGroupsJSON writes comparison groups to path as an indented JSON array.
// An empty slice is written as [] rather than null.
func WriteGroupsJSON(path string, groups []models.ComparisonGroup) error {
	if groups == nil {
		groups = []models.ComparisonGroup{}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("json: create output dir: %w", err)
	}
	data, err := json.MarshalIndent(groups, "", "  ")
	if err != nil {
		return fmt.Errorf("json: marshal groups: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("json: write %q: %w", path, err)
	}
	return nil
}
