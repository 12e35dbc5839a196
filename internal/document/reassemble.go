package document

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"wmclean/internal/raster"
)

// Reassemble composes one PDF page per frame. Page size in points is the
// frame size in pixels divided by scale, so a page rasterized at 72*scale DPI
// comes back at its original physical size.
func Reassemble(frames []*raster.Frame, scale float64) ([]byte, error) {
	if len(frames) == 0 {
		return nil, errors.New("reassemble: no pages")
	}
	if scale <= 0 {
		scale = 1
	}
	first := frames[0]
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: float64(first.Width) / scale, Ht: float64(first.Height) / scale},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCompression(true)
	pdf.SetCreator("wmclean", false)

	for i, frame := range frames {
		data, err := raster.EncodePNG(frame)
		if err != nil {
			return nil, fmt.Errorf("reassemble page %d: %w", i+1, err)
		}
		w := float64(frame.Width) / scale
		h := float64(frame.Height) / scale
		pdf.AddPageFormat("P", gofpdf.SizeType{Wd: w, Ht: h})
		name := fmt.Sprintf("page-%d", i+1)
		opts := gofpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
		pdf.ImageOptions(name, 0, 0, w, h, false, opts, 0, "")
		if pdf.Err() {
			return nil, fmt.Errorf("reassemble page %d: %w", i+1, pdf.Error())
		}
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, fmt.Errorf("reassemble: %w", err)
	}
	return out.Bytes(), nil
}
