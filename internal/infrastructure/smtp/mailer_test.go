package smtp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildMessage(t *testing.T) {
	msg := string(buildMessage("noreply@example.com", "a@b.co", "Your code", "123456"))

	head, body, found := strings.Cut(msg, "\r\n\r\n")
	assert.True(t, found)
	assert.Equal(t, "123456", body)
	assert.Contains(t, head, "To: a@b.co\r\n")
	assert.Contains(t, head, "Subject: Your code\r\n")
	assert.Contains(t, head, "charset=UTF-8")
}
