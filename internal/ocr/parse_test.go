package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractAttr(t *testing.T) {
	body := `<response><task taskId="abc-123" status="Completed" resultUrl="https://s3.example/r?sig=a&amp;exp=2"/></response>`

	id, ok := extractAttr(body, "taskId")
	assert.True(t, ok)
	assert.Equal(t, "abc-123", id)

	status, ok := extractAttr(body, "status")
	assert.True(t, ok)
	assert.Equal(t, "Completed", status)

	// Entity references are unescaped.
	url, ok := extractAttr(body, "resultUrl")
	assert.True(t, ok)
	assert.Equal(t, "https://s3.example/r?sig=a&exp=2", url)
}

func TestExtractAttr_Missing(t *testing.T) {
	_, ok := extractAttr(`<task status="Queued"/>`, "resultUrl")
	assert.False(t, ok)
}

func TestExtractAttr_FirstMatchWins(t *testing.T) {
	body := `<a status="First"/><b status="Second"/>`
	status, ok := extractAttr(body, "status")
	assert.True(t, ok)
	assert.Equal(t, "First", status)
}
