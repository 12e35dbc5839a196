package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"wmclean/internal/logging"
)

const (
	defaultHTTPTimeout  = 60 * time.Second
	maxResponseBytes    = 256 << 20
	defaultPollInterval = 2 * time.Second
	defaultPollAttempts = 60
)

// Settings describe how to reach one provider.
type Settings struct {
	Name         string
	Endpoint     string
	PollEndpoint string
	APIKey       string
	AuthHeader   string
	AuthScheme   string
	// Encoding is "json" (data URIs in a JSON body) or "multipart".
	Encoding string
	// InputKey nests the image and mask fields under one JSON object, as
	// prediction-style APIs expect ({"input": {...}}).
	InputKey   string
	ImageField string
	MaskField  string
	// Extra fields are sent at the top level of every request.
	Extra map[string]string

	Timeout           time.Duration
	PollInterval      time.Duration
	PollAttempts      int
	RequestsPerSecond float64
}

// Option customizes a provider.
type Option func(*client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithSleeper overrides how poll waits are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *client) {
		c.sleeper = sleeper
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// client holds the transport pieces shared by sync and async providers.
type client struct {
	settings Settings
	http     *http.Client
	limiter  *rate.Limiter
	sleeper  func(time.Duration)
	logger   *slog.Logger
}

func newClient(settings Settings, opts []Option) *client {
	if settings.Timeout <= 0 {
		settings.Timeout = defaultHTTPTimeout
	}
	if settings.PollInterval <= 0 {
		settings.PollInterval = defaultPollInterval
	}
	if settings.PollAttempts <= 0 {
		settings.PollAttempts = defaultPollAttempts
	}
	if settings.ImageField == "" {
		settings.ImageField = "image"
	}
	if settings.MaskField == "" {
		settings.MaskField = "mask"
	}
	if settings.Encoding == "" {
		settings.Encoding = "json"
	}
	c := &client{
		settings: settings,
		http:     &http.Client{Timeout: settings.Timeout},
		logger:   logging.NewNop(),
	}
	if settings.RequestsPerSecond > 0 {
		burst := max(1, int(settings.RequestsPerSecond))
		c.limiter = rate.NewLimiter(rate.Limit(settings.RequestsPerSecond), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "remote").With(logging.Provider(settings.Name))
	return c
}

// wait blocks until the rate limiter admits another submission.
func (c *client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// submit sends the payload to the endpoint and returns the raw response.
func (c *client) submit(ctx context.Context, payload Payload) (*response, Result) {
	body, contentType, err := c.encode(payload)
	if err != nil {
		return nil, fatal(0, "encode request: %v", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.settings.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fatal(0, "build request: %v", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json, image/*, application/pdf, application/octet-stream")
	c.authorize(req)
	return c.do(req)
}

// get fetches a URL with the provider's credentials.
func (c *client) get(ctx context.Context, target string, authorize bool) (*response, Result) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fatal(0, "build request: %v", err)
	}
	if authorize {
		c.authorize(req)
	}
	return c.do(req)
}

type response struct {
	status      int
	contentType string
	body        []byte
}

func (c *client) do(req *http.Request) (*response, Result) {
	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classifyTransportError(err)
	}
	c.logger.Debug("provider response",
		logging.String("method", req.Method),
		logging.Int("status", resp.StatusCode),
		logging.Int("response_bytes", len(body)),
		logging.Duration("elapsed", time.Since(started)),
	)
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, classifyStatus(resp.StatusCode, string(body))
	}
	return &response{status: resp.StatusCode, contentType: resp.Header.Get("Content-Type"), body: body}, Result{Outcome: OutcomeSuccess}
}

func (c *client) authorize(req *http.Request) {
	key := strings.TrimSpace(c.settings.APIKey)
	if key == "" {
		return
	}
	header := c.settings.AuthHeader
	if header == "" {
		header = "Authorization"
	}
	value := key
	if scheme := strings.TrimSpace(c.settings.AuthScheme); scheme != "" {
		value = scheme + " " + key
	}
	req.Header.Set(header, value)
}

func (c *client) encode(payload Payload) ([]byte, string, error) {
	contentType := payload.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(payload.Data)
	}
	if c.settings.Encoding == "multipart" {
		return c.encodeMultipart(payload, contentType)
	}

	input := map[string]string{
		c.settings.ImageField: dataURI(contentType, payload.Data),
	}
	if len(payload.Mask) > 0 {
		input[c.settings.MaskField] = dataURI("image/png", payload.Mask)
	}
	doc := make(map[string]any, len(c.settings.Extra)+2)
	for k, v := range c.settings.Extra {
		doc[k] = v
	}
	if c.settings.InputKey != "" {
		doc[c.settings.InputKey] = input
	} else {
		for k, v := range input {
			doc[k] = v
		}
	}
	encoded, err := json.Marshal(doc)
	if err != nil {
		return nil, "", err
	}
	return encoded, "application/json", nil
}

func (c *client) encodeMultipart(payload Payload, contentType string) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range c.settings.Extra {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if err := writePart(w, c.settings.ImageField, "input"+extensionFor(contentType), contentType, payload.Data); err != nil {
		return nil, "", err
	}
	if len(payload.Mask) > 0 {
		if err := writePart(w, c.settings.MaskField, "mask.png", "image/png", payload.Mask); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func writePart(w *multipart.Writer, field, filename, contentType string, data []byte) error {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return err
	}
	_, err = part.Write(data)
	return err
}

func dataURI(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func extensionFor(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "application/pdf"):
		return ".pdf"
	case strings.HasPrefix(contentType, "image/jpeg"):
		return ".jpg"
	default:
		return ".png"
	}
}
