package extractor

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// imageSource runs OCR over an image by shelling out to tesseract.
// The binary must be on PATH; "-" sends the recognized text to stdout.
type imageSource struct {
	path string
}

func (s *imageSource) Text(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "tesseract", s.path, "-")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("tesseract %s: %w", s.path, err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (s *imageSource) Close() error { return nil }
