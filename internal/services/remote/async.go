package remote

import (
	"context"
	"encoding/json"
	"strings"
)

// TaskState is the lifecycle of an asynchronous removal task.
type TaskState string

const (
	TaskCreated   TaskState = "created"
	TaskPending   TaskState = "pending"
	TaskCompleted TaskState = "completed"
	TaskFailed    TaskState = "failed"
)

// ParseTaskState maps the many spellings providers use onto TaskState.
func ParseTaskState(value string) TaskState {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "created", "queued", "starting", "submitted":
		return TaskCreated
	case "succeeded", "success", "successful", "completed", "complete", "done", "finished":
		return TaskCompleted
	case "failed", "failure", "error", "errored", "canceled", "cancelled", "aborted", "expired":
		return TaskFailed
	default:
		return TaskPending
	}
}

// task is the common subset of prediction-style task documents.
type task struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	State  string          `json:"state"`
	Output json.RawMessage `json:"output"`
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
	URLs   struct {
		Get string `json:"get"`
	} `json:"urls"`
}

func (t task) state() TaskState {
	if t.Status != "" {
		return ParseTaskState(t.Status)
	}
	return ParseTaskState(t.State)
}

func (t task) reference() (string, bool) {
	for _, raw := range []json.RawMessage{t.Output, t.Result} {
		if len(raw) == 0 {
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			continue
		}
		if ref, ok := extractReference(v); ok {
			return ref, true
		}
	}
	return "", false
}

func (t task) failure() string {
	if len(t.Error) == 0 || string(t.Error) == "null" {
		return ""
	}
	var text string
	if err := json.Unmarshal(t.Error, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var obj map[string]any
	if err := json.Unmarshal(t.Error, &obj); err == nil {
		if msg := errorMessage(map[string]any{"error": obj}); msg != "" {
			return msg
		}
	}
	return strings.TrimSpace(string(t.Error))
}

// AsyncProvider creates a task, then polls it at a fixed interval until it
// completes, fails, or the poll budget runs out.
type AsyncProvider struct {
	*client
}

// NewAsyncProvider constructs an asynchronous provider.
func NewAsyncProvider(settings Settings, opts ...Option) *AsyncProvider {
	return &AsyncProvider{client: newClient(settings, opts)}
}

// Name returns the configured provider name.
func (p *AsyncProvider) Name() string { return p.settings.Name }

// Remove runs one task to a terminal state. A task the provider reports as
// failed is fatal; one that never finishes within the poll budget is transient.
func (p *AsyncProvider) Remove(ctx context.Context, payload Payload) Result {
	if err := p.wait(ctx); err != nil {
		return transient(0, "rate limiter: %v", err)
	}
	resp, res := p.submit(ctx, payload)
	if resp == nil {
		p.logOutcome(res)
		return res
	}
	var created task
	if err := json.Unmarshal(resp.body, &created); err != nil {
		res = fatal(resp.status, "decode task: %v", err)
		p.logOutcome(res)
		return res
	}
	res = p.follow(ctx, created)
	p.logOutcome(res)
	return res
}

func (p *AsyncProvider) follow(ctx context.Context, current task) Result {
	pollURL := p.pollURL(current)
	for attempt := 0; ; attempt++ {
		switch current.state() {
		case TaskCompleted:
			ref, ok := current.reference()
			if !ok {
				return fatal(0, "task %s completed without output", current.ID)
			}
			return NormalizeReference(ctx, ref, p.download)
		case TaskFailed:
			reason := current.failure()
			if reason == "" {
				reason = "task " + current.ID + " failed"
			}
			if mentionsTooLarge(reason) {
				return Result{Outcome: OutcomeTooLarge, Reason: reason}
			}
			return fatal(0, "task %s failed: %s", current.ID, reason)
		}

		if attempt >= p.settings.PollAttempts {
			return transient(0, "task %s still %s after %d polls", current.ID, current.state(), attempt)
		}
		if pollURL == "" {
			return fatal(0, "task has no id to poll")
		}
		if err := p.sleep(ctx, p.settings.PollInterval); err != nil {
			return transient(0, "poll wait: %v", err)
		}

		resp, res := p.get(ctx, pollURL, true)
		if resp == nil {
			if res.Outcome == OutcomeTransient {
				p.logger.Debug("poll failed, will retry", "reason", res.Reason, "attempt", attempt+1)
				continue
			}
			return res
		}
		var next task
		if err := json.Unmarshal(resp.body, &next); err != nil {
			return fatal(resp.status, "decode task: %v", err)
		}
		if next.ID == "" {
			next.ID = current.ID
		}
		if next.URLs.Get == "" {
			next.URLs.Get = current.URLs.Get
		}
		current = next
	}
}

func (p *AsyncProvider) pollURL(t task) string {
	if t.URLs.Get != "" {
		return t.URLs.Get
	}
	if t.ID == "" {
		return ""
	}
	if tmpl := p.settings.PollEndpoint; tmpl != "" {
		if strings.Contains(tmpl, "{id}") {
			return strings.ReplaceAll(tmpl, "{id}", t.ID)
		}
		return strings.TrimRight(tmpl, "/") + "/" + t.ID
	}
	return strings.TrimRight(p.settings.Endpoint, "/") + "/" + t.ID
}
