package filter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Strob0t/TraceScope/internal/domain"
)

// presetFile is the on-disk YAML form of a preset group.
type presetFile struct {
	ID          string   `yaml:"id"`
	Label       string   `yaml:"label"`
	Description string   `yaml:"description"`
	Enabled     bool     `yaml:"enabled"`
	Patterns    []string `yaml:"patterns"`
}

// LoadPresetFromFile reads one preset group from a YAML file.
func LoadPresetFromFile(path string) (Group, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Group{}, fmt.Errorf("read preset file %s: %w", path, err)
	}

	var p presetFile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Group{}, fmt.Errorf("parse preset file %s: %w", path, err)
	}
	if strings.TrimSpace(p.ID) == "" {
		return Group{}, fmt.Errorf("validate preset file %s: %w: id is required", path, domain.ErrValidation)
	}

	label := p.Label
	if label == "" {
		label = p.ID
	}
	return Group{
		ID:           p.ID,
		Label:        label,
		Description:  p.Description,
		Enabled:      p.Enabled,
		PatternsText: strings.Join(p.Patterns, "\n"),
	}, nil
}

// LoadPresetsFromDirectory reads all .yaml/.yml files of dir in name order.
// A missing directory yields no presets and no error.
func LoadPresetsFromDirectory(dir string) ([]Group, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read preset directory %s: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var groups []Group
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		g, err := LoadPresetFromFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, nil
}
