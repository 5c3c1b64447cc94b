package memory

import (
	"fmt"
	"time"
)

func parseTimestamp(value string) (int64, error) {
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return 0, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return ts.Unix(), nil
}
