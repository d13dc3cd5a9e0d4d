package app

import (
	"context"

	"github.com/ayusman/handscope/internal/engine"
	"github.com/ayusman/handscope/internal/hook"
	"github.com/ayusman/handscope/internal/store"
)

// notify delivers every validated hand, then the run summary, to the
// subscribed hooks. Outcomes are recorded when a store is configured.
func (a *App) notify(ctx context.Context, run *store.Run, result *engine.Result) {
	if !a.config.HooksEnabled || len(a.hooks.List()) == 0 {
		return
	}

	for i := range result.Hands {
		hand := result.Hands[i]
		outcomes := a.notifier.Notify(ctx, hook.Request{
			Event:  hook.EventHand,
			RunID:  run.ID,
			Source: run.Source,
			Hand:   &hand,
		})
		a.record(run.ID, hand.HandID, outcomes)
	}

	outcomes := a.notifier.Notify(ctx, hook.Request{
		Event:  hook.EventRunFinished,
		RunID:  run.ID,
		Source: run.Source,
		Hands:  len(result.Hands),
	})
	a.record(run.ID, 0, outcomes)
}

func (a *App) record(runID string, handID int, outcomes []hook.Outcome) {
	if a.store == nil {
		return
	}
	for _, o := range outcomes {
		d := &store.Delivery{
			RunID:   runID,
			HandID:  handID,
			Hook:    o.Hook,
			Success: o.Success(),
			Error:   o.Message(),
		}
		if err := a.store.Deliveries().Create(d); err != nil {
			a.logger.Warn("failed to record hook delivery", "run_id", runID, "hook", o.Hook, "error", err)
		}
	}
}
