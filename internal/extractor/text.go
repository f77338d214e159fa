package extractor

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

// textSource reads a plain text file, normalizing blank-line runs into
// single paragraph breaks.
type textSource struct {
	path string
}

func (s *textSource) Text(_ context.Context) (string, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return "", fmt.Errorf("open text %s: %w", s.path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var paragraphs []string
	var current strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			if current.Len() > 0 {
				paragraphs = append(paragraphs, current.String())
				current.Reset()
			}
		} else {
			if current.Len() > 0 {
				current.WriteString("\n")
			}
			current.WriteString(line)
		}
	}
	if current.Len() > 0 {
		paragraphs = append(paragraphs, current.String())
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read text %s: %w", s.path, err)
	}

	return strings.Join(paragraphs, "\n\n"), nil
}

func (s *textSource) Close() error { return nil }
