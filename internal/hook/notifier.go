package hook

import (
	"context"
	"errors"
	"log/slog"
)

// Outcome is the result of delivering one request to one hook.
type Outcome struct {
	Hook     string
	Response *Response
	Err      error
}

// Success reports whether the hook ran and answered with success.
func (o Outcome) Success() bool {
	return o.Err == nil && o.Response != nil && o.Response.Success
}

// Message returns the failure reason, or "" on success.
func (o Outcome) Message() string {
	switch {
	case o.Err != nil:
		return o.Err.Error()
	case o.Response == nil:
		return "no response"
	case !o.Response.Success:
		if o.Response.Error == "" {
			return "hook reported failure"
		}
		return o.Response.Error
	}
	return ""
}

// Notifier delivers requests to every subscribed hook in name order.
type Notifier struct {
	manager  *Manager
	executor *Executor
	logger   *slog.Logger
}

// NewNotifier creates a Notifier.
func NewNotifier(manager *Manager, executor *Executor, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{manager: manager, executor: executor, logger: logger.With("component", "hooks")}
}

// Notify runs every hook subscribed to req.Event. Hook failures are logged
// and reported in the outcomes; they never stop delivery to later hooks.
// Only context cancellation ends delivery early.
func (n *Notifier) Notify(ctx context.Context, req Request) []Outcome {
	var outcomes []Outcome
	for _, h := range n.manager.List() {
		if !h.Subscribes(req.Event) {
			continue
		}
		if err := ctx.Err(); err != nil {
			outcomes = append(outcomes, Outcome{Hook: h.Manifest.Name, Err: err})
			continue
		}

		r := req
		resp, err := n.executor.Execute(ctx, h, &r)
		out := Outcome{Hook: h.Manifest.Name, Response: resp, Err: err}
		if !out.Success() {
			level := slog.LevelWarn
			if errors.Is(err, context.Canceled) {
				level = slog.LevelDebug
			}
			n.logger.Log(ctx, level, "hook failed", "hook", h.Manifest.Name, "event", req.Event, "run_id", req.RunID, "error", out.Message())
		}
		outcomes = append(outcomes, out)
	}
	return outcomes
}
