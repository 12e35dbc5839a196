// Package detect finds watermark pixels. Classify applies per-pixel colour and
// brightness rules selected by a ColorMode and Tier; Dilate grows the result
// so anti-aliased watermark edges are covered before inpainting.
package detect
