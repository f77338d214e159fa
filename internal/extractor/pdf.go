package extractor

import (
	"fmt"
	"os"

	pdflib "github.com/ledongthuc/pdf"
)

// pdfSource reads PDF pages lazily so the pipeline can stop between pages.
type pdfSource struct {
	f      *os.File
	reader *pdflib.Reader
}

func openPDF(path string) (*pdfSource, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	return &pdfSource{f: f, reader: reader}, nil
}

func (s *pdfSource) TotalPages() int {
	return s.reader.NumPage()
}

// Page extracts the plain text of page n (1-based). Pages the library
// cannot decode contribute no content.
func (s *pdfSource) Page(n int) (string, bool) {
	if n < 1 || n > s.reader.NumPage() {
		return "", false
	}
	page := s.reader.Page(n)
	if page.V.IsNull() {
		return "", false
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return "", false
	}
	return text, true
}

func (s *pdfSource) Close() error {
	return s.f.Close()
}
