package assembly

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Merger concatenates single-page PDFs in order and reports the page count of
// the result.
type Merger interface {
	Merge(pages [][]byte) (merged []byte, pageCount int, err error)
}

type PDFMerger struct {
	conf *model.Configuration
}

func NewPDFMerger() *PDFMerger {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFMerger{conf: conf}
}

func (m *PDFMerger) Merge(pages [][]byte) ([]byte, int, error) {
	if len(pages) == 0 {
		return nil, 0, fmt.Errorf("merge: no pages")
	}

	merged := pages[0]
	if len(pages) > 1 {
		readers := make([]io.ReadSeeker, len(pages))
		for i, p := range pages {
			readers[i] = bytes.NewReader(p)
		}
		var buf bytes.Buffer
		if err := api.MergeRaw(readers, &buf, false, m.conf); err != nil {
			return nil, 0, fmt.Errorf("merge pages: %w", err)
		}
		merged = buf.Bytes()
	}

	count, err := api.PageCount(bytes.NewReader(merged), m.conf)
	if err != nil {
		return nil, 0, fmt.Errorf("count merged pages: %w", err)
	}
	return merged, count, nil
}
