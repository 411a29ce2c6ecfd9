package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 15, 12, 30, 45, 123456789, time.UTC)

	token := EncodeCursor(ts, "row-42")
	gotTS, gotID, err := DecodeCursor(token)
	require.NoError(t, err)

	assert.True(t, ts.Equal(gotTS))
	assert.Equal(t, "row-42", gotID)
}

func TestDecodeCursor_InvalidBase64(t *testing.T) {
	_, _, err := DecodeCursor("not-base64!!!")
	assert.Error(t, err)
}

func TestDecodeCursor_MissingSeparator(t *testing.T) {
	// base64("2026-01-01T00:00:00Z") with no id part
	_, _, err := DecodeCursor("MjAyNi0wMS0wMVQwMDowMDowMFo=")
	assert.Error(t, err)
}

func TestCursorIDsWithSeparator(t *testing.T) {
	// IDs containing the separator survive the round trip
	ts := time.Now().UTC()
	token := EncodeCursor(ts, "a|b")
	_, id, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, "a|b", id)
}
