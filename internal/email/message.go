package email

import (
	"bytes"
	"fmt"
	"net/mail"
	"net/textproto"
	"strings"
	"text/template"
	"time"
)

// TemplateHeader names the template an email was rendered from.
// Senders that index mail by purpose (the Redis mock sink) read it back.
const TemplateHeader = "X-Template"

// Render executes a text/template source against data.
// Missing keys are errors so that a typo in a template never ships "<no value>".
func Render(name, source string, data map[string]any) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(source)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return buf.String(), nil
}

// Compose builds a plain-text RFC 5322 message.
func Compose(from string, to []string, subject, body, templateID string, at time.Time) []byte {
	var sb strings.Builder
	sb.WriteString("To: " + strings.Join(to, ", ") + "\r\n")
	sb.WriteString("From: " + from + "\r\n")
	sb.WriteString("Subject: " + subject + "\r\n")
	sb.WriteString("Date: " + at.Format(time.RFC1123Z) + "\r\n")
	if templateID != "" {
		sb.WriteString(TemplateHeader + ": " + templateID + "\r\n")
	}
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(strings.ReplaceAll(strings.TrimRight(body, "\r\n"), "\n", "\r\n"))
	sb.WriteString("\r\n")
	return []byte(sb.String())
}

// Parse splits a raw message into its headers and body.
func Parse(rawMessage []byte) (textproto.MIMEHeader, string, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(rawMessage))
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse email: %w", err)
	}
	var body bytes.Buffer
	if _, err := body.ReadFrom(msg.Body); err != nil {
		return nil, "", fmt.Errorf("failed to read email body: %w", err)
	}
	return textproto.MIMEHeader(msg.Header), body.String(), nil
}
