package out

import (
	"context"
	"fmt"
	"os"

	"rsc.io/pdf"

	fetchout "coursedl/internal/modules/fetch/port/out"
)

type PDFChecker struct{}

func NewPDFChecker() fetchout.DocumentChecker {
	return PDFChecker{}
}

// Pages opens path as a PDF and returns its page count. The parser panics on
// some malformed files; those are reported as errors.
func (PDFChecker) Pages(_ context.Context, path string) (pages int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	defer func() { _ = f.Close() }()
	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat pdf: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			pages, err = 0, fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	doc, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return 0, fmt.Errorf("read pdf: %w", err)
	}
	return doc.NumPage(), nil
}
