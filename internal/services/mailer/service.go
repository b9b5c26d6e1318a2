// -----------------------------------------------------------------------
// Mailer Service - SMTP delivery of operator alerts
// -----------------------------------------------------------------------

package mailer

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"mime"
	"net/smtp"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/finbot/internal/common"
)

// transport delivers an assembled message; replaced in tests
type transport func(addr string, auth smtp.Auth, from, to, msg string) error

// Service sends mail through the configured SMTP server
type Service struct {
	config common.SMTPConfig
	logger arbor.ILogger
	send   transport
}

// NewService creates a mailer for config
func NewService(config common.SMTPConfig, logger arbor.ILogger) *Service {
	s := &Service{
		config: config,
		logger: logger,
	}
	if config.UseTLS {
		s.send = s.sendWithTLS
	} else {
		s.send = func(addr string, auth smtp.Auth, from, to, msg string) error {
			return smtp.SendMail(addr, auth, from, []string{to}, []byte(msg))
		}
	}
	return s
}

// IsConfigured checks the minimum settings needed to send
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Username != "" && s.config.Password != "" && s.config.FromEmail != ""
}

// SendHTMLEmail sends an email with an HTML and/or plain text body
func (s *Service) SendHTMLEmail(ctx context.Context, to, subject, htmlBody, textBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("SMTP not configured (host, username, password and from_email are required)")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := s.buildMessage(to, subject, htmlBody, textBody)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)

	if err := s.send(addr, auth, s.config.FromEmail, to, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}

	s.logger.Debug().
		Str("to", to).
		Str("subject", subject).
		Msg("Email sent")
	return nil
}

func (s *Service) buildMessage(to, subject, htmlBody, textBody string) string {
	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s <%s>\r\n", mime.QEncoding.Encode("UTF-8", s.config.FromName), s.config.FromEmail))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", subject)))
	msg.WriteString("MIME-Version: 1.0\r\n")

	if htmlBody == "" {
		msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
		msg.WriteString("Content-Transfer-Encoding: base64\r\n")
		msg.WriteString("\r\n")
		msg.WriteString(encodeBase64WithLineBreaks(textBody))
		msg.WriteString("\r\n")
		return msg.String()
	}

	boundary := generateBoundary()
	msg.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary))
	msg.WriteString("\r\n")

	if textBody != "" {
		msg.WriteString(fmt.Sprintf("--%s\r\n", boundary))
		msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
		msg.WriteString("Content-Transfer-Encoding: base64\r\n")
		msg.WriteString("\r\n")
		msg.WriteString(encodeBase64WithLineBreaks(textBody))
		msg.WriteString("\r\n")
	}

	// base64 keeps every line under the RFC 5322 limit of 998 characters
	msg.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("Content-Transfer-Encoding: base64\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(encodeBase64WithLineBreaks(htmlBody))
	msg.WriteString("\r\n")

	msg.WriteString(fmt.Sprintf("--%s--\r\n", boundary))
	return msg.String()
}

// sendWithTLS sends over an implicit TLS connection, falling back to STARTTLS
func (s *Service) sendWithTLS(addr string, auth smtp.Auth, from, to, msg string) error {
	host := strings.Split(addr, ":")[0]

	conn, err := tls.Dial("tcp", addr, &tls.Config{
		ServerName: host,
	})
	if err != nil {
		return s.sendWithSTARTTLS(addr, auth, from, to, msg)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	return deliver(client, auth, from, to, msg)
}

// sendWithSTARTTLS upgrades a plain connection (port 587)
func (s *Service) sendWithSTARTTLS(addr string, auth smtp.Auth, from, to, msg string) error {
	host := strings.Split(addr, ":")[0]

	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	if err := client.StartTLS(&tls.Config{ServerName: host}); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}

	return deliver(client, auth, from, to, msg)
}

func deliver(client *smtp.Client, auth smtp.Auth, from, to, msg string) error {
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP authentication failed: %w", err)
	}
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("failed to set mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set mail recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start data: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	return client.Quit()
}

// generateBoundary creates a unique MIME boundary string
func generateBoundary() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "finbot_boundary_fallback"
	}
	return fmt.Sprintf("finbot_%x", b)
}

// encodeBase64WithLineBreaks encodes content as base64 with 76-char lines (RFC 2045)
func encodeBase64WithLineBreaks(content string) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(content))

	var result strings.Builder
	const lineLen = 76

	for i := 0; i < len(encoded); i += lineLen {
		end := i + lineLen
		if end > len(encoded) {
			end = len(encoded)
		}
		result.WriteString(encoded[i:end])
		if end < len(encoded) {
			result.WriteString("\r\n")
		}
	}
	return result.String()
}
