package filter

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Strob0t/TraceScope/internal/domain"
)

// SettingsVersion is the version written into exported settings documents.
const SettingsVersion = 1

type settingsDocument struct {
	Version    int       `json:"version"`
	ExportedAt time.Time `json:"exportedAt"`
	Filters    *Settings `json:"filters"`
}

// ExportSettings encodes s as a versioned, re-importable document.
func ExportSettings(s Settings, now time.Time) ([]byte, error) {
	cp := s.Clone()
	if cp.Groups == nil {
		cp.Groups = []Group{}
	}
	data, err := json.MarshalIndent(settingsDocument{
		Version:    SettingsVersion,
		ExportedAt: now.UTC(),
		Filters:    &cp,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode filter settings: %w", err)
	}
	return data, nil
}

// ImportSettings decodes a document written by ExportSettings.
func ImportSettings(data []byte) (Settings, error) {
	var doc settingsDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return Settings{}, fmt.Errorf("%w: decode filter settings: %v", domain.ErrValidation, err)
	}
	if doc.Version < 1 || doc.Version > SettingsVersion {
		return Settings{}, fmt.Errorf("%w: unsupported filter settings version %d", domain.ErrValidation, doc.Version)
	}
	if doc.Filters == nil {
		return Settings{}, fmt.Errorf("%w: filter settings document has no filters", domain.ErrValidation)
	}
	if err := doc.Filters.Validate(); err != nil {
		return Settings{}, err
	}
	return *doc.Filters, nil
}
