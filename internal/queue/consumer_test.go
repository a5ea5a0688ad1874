package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatLine(t *testing.T) {
	p := int64(150)
	line := FormatLine(HiringCompletedEvent{
		RequestID: "r1", ResponseID: "x1", ClientID: "a", ArtistID: "b",
		CategoryID: "dj", City: "Bogotá", AgreedPrice: &p, RejectedIDs: []string{"x2", "x3"},
		CompletedAt: "2026-01-01T00:00:00Z",
	})
	assert.True(t, strings.HasSuffix(line, "\n"))
	assert.Contains(t, line, "request_id=r1")
	assert.Contains(t, line, `city="Bogotá"`)
	assert.Contains(t, line, "price=150")
	assert.Contains(t, line, "rejected=[x2,x3]")

	line = FormatLine(HiringCompletedEvent{RequestID: "r2"})
	assert.Contains(t, line, "price=-")
	assert.Contains(t, line, "rejected=[]")
}

func TestHandleMessageAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "hiring.log")
	c := &Consumer{LogPath: path, Log: zerolog.Nop()}

	for _, id := range []string{"r1", "r2"} {
		body, err := json.Marshal(HiringCompletedEvent{RequestID: id})
		require.NoError(t, err)
		require.NoError(t, c.HandleMessage(body))
	}
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "request_id=r2")

	assert.Error(t, c.HandleMessage([]byte("{nope")))
}
