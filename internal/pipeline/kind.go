package pipeline

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
)

// Kind is the media family of an input.
type Kind string

const (
	KindImage    Kind = "image"
	KindDocument Kind = "document"
	KindVideo    Kind = "video"
)

// ParseKind accepts a case-insensitive kind name; "" means detect.
func ParseKind(value string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(value))); k {
	case "", KindImage, KindDocument, KindVideo:
		return k, nil
	case "pdf":
		return KindDocument, nil
	default:
		return "", fmt.Errorf("unknown media kind %q", value)
	}
}

var extensionKinds = map[string]Kind{
	".pdf":  KindDocument,
	".png":  KindImage,
	".jpg":  KindImage,
	".jpeg": KindImage,
	".gif":  KindImage,
	".bmp":  KindImage,
	".tif":  KindImage,
	".tiff": KindImage,
	".webp": KindImage,
	".mp4":  KindVideo,
	".m4v":  KindVideo,
	".mov":  KindVideo,
	".mkv":  KindVideo,
	".webm": KindVideo,
	".avi":  KindVideo,
}

// DetectKind sniffs data, falling back to the file extension of name.
func DetectKind(data []byte, name string) (Kind, error) {
	contentType := http.DetectContentType(data)
	switch {
	case contentType == "application/pdf":
		return KindDocument, nil
	case strings.HasPrefix(contentType, "image/"):
		return KindImage, nil
	case strings.HasPrefix(contentType, "video/"):
		return KindVideo, nil
	}
	if kind, ok := extensionKinds[strings.ToLower(filepath.Ext(name))]; ok {
		return kind, nil
	}
	return "", fmt.Errorf("unsupported content type %s", contentType)
}

// OutputName returns the name a cleaned copy of input is written under.
func OutputName(input, ext string) string {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if ext == "" {
		ext = filepath.Ext(base)
	}
	return stem + "_cleaned" + ext
}
