package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"mime"
	"net/url"
	"strings"
)

// Fetcher downloads a result referenced by URL.
type Fetcher func(ctx context.Context, target string) Result

// resultKeys lists the JSON fields providers use for their output, in the
// order they are consulted.
var resultKeys = []string{
	"output", "result", "image", "images", "data", "url",
	"output_url", "image_url", "result_url", "b64_json", "base64", "file",
}

// Normalize turns any provider response into raw result bytes. Accepted
// shapes are a raw binary body, or a JSON body whose output field holds a
// URL, a data URI, an inline base64 string, or an array or object wrapping
// one of those.
func Normalize(ctx context.Context, contentType string, body []byte, fetch Fetcher) Result {
	if len(bytes.TrimSpace(body)) == 0 {
		return fatal(0, "provider returned an empty body")
	}
	if !looksLikeJSON(contentType, body) {
		return success(body)
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return fatal(0, "decode provider response: %v", err)
	}
	if obj, ok := doc.(map[string]any); ok {
		if reason := errorMessage(obj); reason != "" {
			if _, hasRef := extractReference(obj); !hasRef {
				if mentionsTooLarge(reason) {
					return Result{Outcome: OutcomeTooLarge, Reason: reason}
				}
				return fatal(0, "provider error: %s", reason)
			}
		}
	}
	ref, ok := extractReference(doc)
	if !ok {
		return fatal(0, "provider response has no output: %s", summarize(string(body)))
	}
	return NormalizeReference(ctx, ref, fetch)
}

// NormalizeReference resolves a single output reference.
func NormalizeReference(ctx context.Context, ref string, fetch Fetcher) Result {
	ref = strings.TrimSpace(ref)
	switch {
	case strings.HasPrefix(ref, "data:"):
		data, err := decodeDataURI(ref)
		if err != nil {
			return fatal(0, "decode data uri: %v", err)
		}
		return success(data)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		if _, err := url.Parse(ref); err != nil {
			return fatal(0, "invalid result url: %v", err)
		}
		if fetch == nil {
			return fatal(0, "result url %s cannot be fetched", ref)
		}
		return fetch(ctx, ref)
	default:
		data, err := decodeBase64(ref)
		if err != nil {
			return fatal(0, "unrecognized result reference %q", truncate(ref, 48))
		}
		return success(data)
	}
}

func looksLikeJSON(contentType string, body []byte) bool {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		if mediaType == "application/json" || strings.HasSuffix(mediaType, "+json") {
			return true
		}
		if strings.HasPrefix(mediaType, "image/") || mediaType == "application/pdf" || mediaType == "application/octet-stream" {
			return false
		}
	}
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') && json.Valid(trimmed)
}

func extractReference(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		if strings.TrimSpace(val) != "" {
			return val, true
		}
	case []any:
		for _, item := range val {
			if ref, ok := extractReference(item); ok {
				return ref, true
			}
		}
	case map[string]any:
		for _, key := range resultKeys {
			if inner, ok := val[key]; ok {
				if ref, ok := extractReference(inner); ok {
					return ref, true
				}
			}
		}
	}
	return "", false
}

func errorMessage(obj map[string]any) string {
	for _, key := range []string{"error", "detail", "message"} {
		switch v := obj[key].(type) {
		case string:
			if strings.TrimSpace(v) != "" && key != "message" {
				return strings.TrimSpace(v)
			}
		case map[string]any:
			if msg, ok := v["message"].(string); ok && strings.TrimSpace(msg) != "" {
				return strings.TrimSpace(msg)
			}
		}
	}
	return ""
}

func decodeDataURI(value string) ([]byte, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(value, "data:"), ",")
	if !ok {
		return nil, errMalformedDataURI
	}
	if strings.HasSuffix(header, ";base64") {
		return decodeBase64(payload)
	}
	unescaped, err := url.PathUnescape(payload)
	if err != nil {
		return nil, err
	}
	return []byte(unescaped), nil
}

func decodeBase64(value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	var lastErr error
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		data, err := enc.DecodeString(value)
		if err == nil && len(data) > 0 {
			return data, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errMalformedDataURI
	}
	return nil, lastErr
}

func truncate(value string, n int) string {
	if len(value) <= n {
		return value
	}
	return value[:n] + "..."
}
