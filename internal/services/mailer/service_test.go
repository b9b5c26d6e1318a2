package mailer

import (
	"context"
	"encoding/base64"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/finbot/internal/common"
)

func testConfig() common.SMTPConfig {
	return common.SMTPConfig{
		Host:      "smtp.example.com",
		Port:      587,
		Username:  "bot@example.com",
		Password:  "secret",
		FromEmail: "bot@example.com",
		FromName:  "finbot",
		UseTLS:    true,
	}
}

type captured struct {
	addr, from, to, msg string
}

func newCapturing(config common.SMTPConfig, err error) (*Service, *captured) {
	s := NewService(config, arbor.NewLogger())
	c := &captured{}
	s.send = func(addr string, auth smtp.Auth, from, to, msg string) error {
		c.addr, c.from, c.to, c.msg = addr, from, to, msg
		return err
	}
	return s, c
}

func TestIsConfigured(t *testing.T) {
	assert.True(t, NewService(testConfig(), arbor.NewLogger()).IsConfigured())

	config := testConfig()
	config.Password = ""
	assert.False(t, NewService(config, arbor.NewLogger()).IsConfigured())
}

func TestSendHTMLEmail(t *testing.T) {
	s, c := newCapturing(testConfig(), nil)

	err := s.SendHTMLEmail(context.Background(), "ops@example.com", "Report dispatch failed · NVDA", "<p>failed</p>", "failed")
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:587", c.addr)
	assert.Equal(t, "bot@example.com", c.from)
	assert.Equal(t, "ops@example.com", c.to)
	assert.Contains(t, c.msg, "To: ops@example.com\r\n")
	assert.Contains(t, c.msg, "Subject: =?UTF-8?q?Report_dispatch_failed_=C2=B7_NVDA?=\r\n")
	assert.Contains(t, c.msg, "multipart/alternative; boundary=\"finbot_")
	assert.Contains(t, c.msg, base64.StdEncoding.EncodeToString([]byte("<p>failed</p>")))
	assert.Contains(t, c.msg, base64.StdEncoding.EncodeToString([]byte("failed")))
}

func TestSendHTMLEmail_PlainText(t *testing.T) {
	s, c := newCapturing(testConfig(), nil)

	require.NoError(t, s.SendHTMLEmail(context.Background(), "ops@example.com", "Alert", "", "plain body"))
	assert.Contains(t, c.msg, "Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	assert.NotContains(t, c.msg, "multipart")
	assert.Contains(t, c.msg, base64.StdEncoding.EncodeToString([]byte("plain body")))
}

func TestSendHTMLEmail_Errors(t *testing.T) {
	config := testConfig()
	config.Host = ""
	s, _ := newCapturing(config, nil)
	assert.Error(t, s.SendHTMLEmail(context.Background(), "ops@example.com", "x", "", "x"))

	s, _ = newCapturing(testConfig(), errors.New("535 authentication failed"))
	err := s.SendHTMLEmail(context.Background(), "ops@example.com", "x", "", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "535")
}

func TestEncodeBase64WithLineBreaks(t *testing.T) {
	encoded := encodeBase64WithLineBreaks(strings.Repeat("a", 200))
	lines := strings.Split(encoded, "\r\n")
	require.Greater(t, len(lines), 1)
	for _, line := range lines {
		assert.LessOrEqual(t, len(line), 76)
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(encoded, "\r\n", ""))
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a", 200), string(decoded))
}
