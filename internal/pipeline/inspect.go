package pipeline

import (
	"wmclean/internal/detect"
	"wmclean/internal/raster"
	"wmclean/internal/services"
)

// Inspection is the classifier's view of one image.
type Inspection struct {
	Frame *raster.Frame
	// Mask is the dilated watermark mask that would be repaired.
	Mask *raster.Mask
	Mode detect.ColorMode
	Tier detect.Tier
}

// Inspect classifies an image without repairing it.
func (c *Cleaner) Inspect(req Request) (*Inspection, error) {
	if len(req.Data) == 0 {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "inspect", "input is empty", nil)
	}
	settings, err := c.settings(req, KindImage)
	if err != nil {
		return nil, err
	}
	frame, _, err := raster.Decode(req.Data)
	if err != nil {
		return nil, services.Wrap(services.ErrDecode, "image", "decode", "could not decode image", err)
	}
	mask := settings.classifier.Classify(frame)
	if settings.radius > 0 {
		mask = detect.Dilate(mask, settings.radius)
	}
	return &Inspection{
		Frame: frame,
		Mask:  mask,
		Mode:  settings.classifier.Mode(),
		Tier:  tierOf(req, c.cfg),
	}, nil
}
