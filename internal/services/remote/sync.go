package remote

import (
	"context"
	"log/slog"
)

// SyncProvider submits a payload and receives the result in the same response.
type SyncProvider struct {
	*client
}

// NewSyncProvider constructs a synchronous provider.
func NewSyncProvider(settings Settings, opts ...Option) *SyncProvider {
	return &SyncProvider{client: newClient(settings, opts)}
}

// Name returns the configured provider name.
func (p *SyncProvider) Name() string { return p.settings.Name }

// Remove submits the payload once. Retries are the caller's concern.
func (p *SyncProvider) Remove(ctx context.Context, payload Payload) Result {
	if err := p.wait(ctx); err != nil {
		return transient(0, "rate limiter: %v", err)
	}
	resp, res := p.submit(ctx, payload)
	if resp == nil {
		p.logOutcome(res)
		return res
	}
	res = Normalize(ctx, resp.contentType, resp.body, p.download)
	p.logOutcome(res)
	return res
}

func (c *client) download(ctx context.Context, target string) Result {
	resp, res := c.get(ctx, target, false)
	if resp == nil {
		res.Reason = "download result: " + res.Reason
		return res
	}
	return success(resp.body)
}

func (c *client) logOutcome(res Result) {
	level := slog.LevelDebug
	if res.Outcome != OutcomeSuccess {
		level = slog.LevelInfo
	}
	c.logger.Log(context.Background(), level, "provider call finished",
		slog.String("outcome", res.Outcome.String()),
		slog.Int("status", res.StatusCode),
		slog.String("reason", res.Reason),
		slog.Int("result_bytes", len(res.Data)),
	)
}
