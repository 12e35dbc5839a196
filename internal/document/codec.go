package document

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var disableConfigDir sync.Once

// PDFCodec implements page counting, page-range extraction and merging on
// in-memory PDF documents.
type PDFCodec struct{}

// NewPDFCodec returns a codec. pdfcpu's on-disk configuration directory is
// disabled so the codec never writes outside the work directory.
func NewPDFCodec() PDFCodec {
	disableConfigDir.Do(api.DisableConfigDir)
	return PDFCodec{}
}

func (PDFCodec) conf() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// PageCount returns the number of pages in doc.
func (c PDFCodec) PageCount(doc []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(doc), c.conf())
	if err != nil {
		return 0, fmt.Errorf("pdf page count: %w", err)
	}
	return n, nil
}

// Extract returns pages [start, end) as a new document.
func (c PDFCodec) Extract(doc []byte, start, end int) ([]byte, error) {
	if start < 0 || end <= start {
		return nil, fmt.Errorf("pdf extract: invalid page range [%d, %d)", start, end)
	}
	var out bytes.Buffer
	selection := []string{fmt.Sprintf("%d-%d", start+1, end)}
	if err := api.Trim(bytes.NewReader(doc), &out, selection, c.conf()); err != nil {
		return nil, fmt.Errorf("pdf extract pages %d-%d: %w", start+1, end, err)
	}
	return out.Bytes(), nil
}

// Merge concatenates documents in order.
func (c PDFCodec) Merge(parts [][]byte) ([]byte, error) {
	switch len(parts) {
	case 0:
		return nil, fmt.Errorf("pdf merge: no documents")
	case 1:
		return parts[0], nil
	}
	readers := make([]io.ReadSeeker, len(parts))
	for i, part := range parts {
		readers[i] = bytes.NewReader(part)
	}
	var out bytes.Buffer
	if err := api.MergeRaw(readers, &out, false, c.conf()); err != nil {
		return nil, fmt.Errorf("pdf merge: %w", err)
	}
	return out.Bytes(), nil
}
