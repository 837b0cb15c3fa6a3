package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// FileSystemSink saves extracted content as one JSON document per unit.
type FileSystemSink struct {
	root   string
	logger *zap.Logger
}

// NewFileSystemSink returns a sink rooted at dir.
func NewFileSystemSink(root string, logger *zap.Logger) (*FileSystemSink, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create sink dir %s: %w", root, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSystemSink{root: root, logger: logger}, nil
}

// Write persists the extracted document to disk.
func (s *FileSystemSink) Write(ctx context.Context, content ExtractedContent) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}
	if content.UnitID == "" {
		return fmt.Errorf("extracted content has no unit id")
	}
	payload, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal content: %w", err)
	}
	target := filepath.Join(s.root, content.UnitID+".json")
	if err := os.WriteFile(target, payload, 0o600); err != nil {
		return fmt.Errorf("write content %s: %w", target, err)
	}
	s.logger.Debug("content written",
		zap.String("unit_id", content.UnitID),
		zap.String("path", target),
		zap.Int("pages", len(content.Pages)),
	)
	return nil
}
