package archive

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// Cursor marks the last record of a history page
type Cursor struct {
	FinishedAt time.Time
	JobID      string
}

// DecodeCursor parses an opaque page cursor. An empty string means the first page.
func DecodeCursor(cursorStr string) (*Cursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	decoded, err := base64.URLEncoding.DecodeString(cursorStr)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor encoding: %w", err)
	}

	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 || parts[1] == "" {
		return nil, fmt.Errorf("invalid cursor format")
	}

	var nanos int64
	if _, err := fmt.Sscanf(parts[0], "%d", &nanos); err != nil {
		return nil, fmt.Errorf("invalid timestamp in cursor: %w", err)
	}

	return &Cursor{
		FinishedAt: time.Unix(0, nanos).UTC(),
		JobID:      parts[1],
	}, nil
}

// EncodeCursor renders c as an opaque string
func EncodeCursor(c *Cursor) string {
	cs := fmt.Sprintf("%d|%s", c.FinishedAt.UnixNano(), c.JobID)
	return base64.URLEncoding.EncodeToString([]byte(cs))
}
