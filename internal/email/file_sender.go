package email

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/myloveankyy/xkey-auction-sub000/internal/config"
)

// FileEmailSender appends every outgoing email to a local file. It is meant to
// run next to the real sender so operators can audit lead alerts.
type FileEmailSender struct {
	mu       sync.Mutex
	filePath string
	appName  string
}

func NewFileEmailSender(filePath string, cfg *config.Config) (Sender, error) {
	filePath = strings.TrimSpace(filePath)
	if filePath == "" {
		return nil, fmt.Errorf("email log file path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for email log %s: %w", filePath, err)
	}
	return &FileEmailSender{filePath: filePath, appName: cfg.AppName}, nil
}

func (s *FileEmailSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	templateID := "-"
	if header, _, err := Parse(rawMessage); err == nil && header.Get(TemplateHeader) != "" {
		templateID = header.Get(TemplateHeader)
	}

	var entry strings.Builder
	fmt.Fprintf(&entry, "=== %s mail %s template=%s to=%s ===\n", s.appName, time.Now().UTC().Format(time.RFC3339), templateID, strings.Join(to, ","))
	fmt.Fprintf(&entry, "Subject: %s\n\n", subject)
	entry.Write(rawMessage)
	entry.WriteString("\n")

	// Workers deliver concurrently; one entry must never interleave with another.
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := os.OpenFile(s.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open email log %s: %w", s.filePath, err)
	}
	defer file.Close()
	if _, err := file.WriteString(entry.String()); err != nil {
		log.Printf("WARNING: failed to append email to %s: %v", s.filePath, err)
		return fmt.Errorf("failed to write email log: %w", err)
	}
	return nil
}
