package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractPDF returns the plain text of every readable page, one page per paragraph.
// Pages that fail to decode are skipped; it is an error only when no page could be read.
func extractPDF(content []byte) (text string, err error) {
	// The pdf package panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}
	numPages := r.NumPage()
	if numPages == 0 {
		return "", errors.New("PDF has no pages")
	}

	pages := make([]string, 0, numPages)
	var firstErr error
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, perr := page.GetPlainText(nil)
		if perr != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("page %d: %w", i, perr)
			}
			continue
		}
		if s := strings.TrimSpace(pageText); s != "" {
			pages = append(pages, s)
		}
	}
	if len(pages) == 0 && firstErr != nil {
		return "", firstErr
	}
	return strings.Join(pages, "\n\n"), nil
}
