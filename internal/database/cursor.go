package database

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// TimeFormat is the storage format for timestamps: RFC 3339 UTC with a
// fixed-width 9-digit fraction. Fixed width keeps the TEXT columns and
// cursor comparisons lexicographically ordered; RFC3339Nano trims trailing
// zeros and breaks that.
const TimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Cursor tokens are opaque to clients: base64("timestamp|rowID") of the
// last row on the previous page. The id breaks ties between rows sharing a
// timestamp.

// EncodeCursor builds a pagination token from the last row of a page.
func EncodeCursor(ts time.Time, id string) string {
	raw := ts.UTC().Format(TimeFormat) + "|" + id
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a pagination token produced by EncodeCursor.
func DecodeCursor(token string) (time.Time, string, error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("invalid page token: %w", err)
	}

	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, "", fmt.Errorf("invalid page token format")
	}

	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, "", fmt.Errorf("invalid page token timestamp: %w", err)
	}

	return ts, parts[1], nil
}
