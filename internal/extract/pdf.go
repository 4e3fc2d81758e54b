// Package extract pulls raw text out of downloaded paper PDFs.
package extract

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"paperflow/internal/util"
)

// Extractor reads the full text of a PDF document. Extraction is
// all-or-nothing per document: there are no partial results.
type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

// Text returns the document's full text as one trimmed string. A
// missing path yields util.ErrNotFound; any parse fault yields
// util.ErrExtraction wrapping the underlying error.
func (e *Extractor) Text(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %s", util.ErrNotFound, path)
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: open pdf: %v", util.ErrExtraction, err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: read pdf text: %v", util.ErrExtraction, err)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, reader); err != nil {
		return "", fmt.Errorf("%w: copy pdf text: %v", util.ErrExtraction, err)
	}
	return util.SanitizeText(buf.String()), nil
}
