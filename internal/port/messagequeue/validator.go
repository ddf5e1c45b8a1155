package messagequeue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Validate checks that data is a well-formed session event for subject.
// Subjects that do not end in a known event name pass once data is valid JSON.
func Validate(subject string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON on subject %s", subject)
	}
	if !strings.HasSuffix(subject, "."+EventUpdated) && !strings.HasSuffix(subject, "."+EventLoadFailed) {
		return nil
	}

	var p SessionEventPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("schema validation failed for %s: %w", subject, err)
	}
	if p.SessionID == "" {
		return fmt.Errorf("schema validation failed for %s: %w", subject, errors.New("session_id is required"))
	}
	if strings.HasSuffix(subject, "."+EventLoadFailed) && p.Error == "" {
		return fmt.Errorf("schema validation failed for %s: %w", subject, errors.New("error is required"))
	}
	return nil
}
