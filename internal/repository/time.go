package repository

import "time"

// parseTime reads the timestamps sqlite hands back as text. Rows written by
// this code use RFC3339Nano; plain RFC3339 is accepted for rows seeded by
// hand or by older builds.
func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	var firstErr error
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t.UTC(), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}
