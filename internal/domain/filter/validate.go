package filter

import (
	"fmt"
	"strings"

	"github.com/Strob0t/TraceScope/internal/domain"
)

// Validate checks that every group has a unique, non-empty id that does not
// collide with the custom group.
func (s Settings) Validate() error {
	seen := make(map[string]bool, len(s.Groups))
	for i, g := range s.Groups {
		id := strings.TrimSpace(g.ID)
		if id == "" {
			return fmt.Errorf("%w: group %d: id is required", domain.ErrValidation, i)
		}
		if id == CustomGroupID {
			return fmt.Errorf("%w: group id %q is reserved", domain.ErrValidation, id)
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate group id %q", domain.ErrValidation, id)
		}
		seen[id] = true
	}
	return nil
}

// Merge appends the groups of extra whose ids are not yet present in s.
func (s Settings) Merge(extra []Group) Settings {
	out := s.Clone()
	for _, g := range extra {
		if _, ok := out.Group(g.ID); ok {
			continue
		}
		out.Groups = append(out.Groups, g)
	}
	return out
}
