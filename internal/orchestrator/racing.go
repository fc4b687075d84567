package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"glance/internal/logging"
	"glance/internal/metrics"
	"glance/internal/prompt"
	"glance/internal/provider"
	"glance/internal/routing"
	"glance/internal/selection"
)

// SendRequestRacing runs the same pipeline as SendRequest but dispatches
// the top raceCandidates backends concurrently and keeps the first success.
// Losing attempts are cancelled best-effort; a cancelled loser is not held
// against its backend's health. Remote racing fires concurrent paid calls,
// so this stays opt-in.
func (o *Orchestrator) SendRequestRacing(ctx context.Context, req Request) (*Response, error) {
	return o.send(ctx, req, true)
}

func (o *Orchestrator) dispatchRacing(ctx context.Context, req Request, decision *routing.Decision, composed *prompt.ComposedPrompt, sel *selection.SelectionResult, audit *logging.AuditLogger) (*Response, error) {
	candidates := append([]string{sel.Provider}, sel.FallbackChain...)
	if k := o.cfg.Selection.RaceCandidates; len(candidates) > k {
		candidates = candidates[:k]
	}
	logging.Orchestrator("[Orchestrator] racing %d candidates: %v", len(candidates), candidates)

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu      sync.Mutex
		winner  *provider.Response
		winName string
		tried   []string
		lastErr error
	)

	g, gctx := errgroup.WithContext(raceCtx)
	for _, name := range candidates {
		g.Go(func() error {
			client, ok := o.registry.Get(name)
			if !ok {
				mu.Lock()
				tried = append(tried, name)
				lastErr = fmt.Errorf("no client constructed for %s", name)
				mu.Unlock()
				return nil
			}

			model := sel.Model
			if name != sel.Provider {
				model = o.selector.ModelFor(gctx, name)
			}
			presp, err := o.dispatchOnce(gctx, audit, client, name, model, req, composed)

			mu.Lock()
			defer mu.Unlock()
			tried = append(tried, name)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					lastErr = err
				}
				return nil
			}
			if winner == nil {
				winner = presp
				winName = name
				cancel()
			}
			return nil
		})
	}
	g.Wait()

	if winner == nil {
		if err := ctx.Err(); err != nil && lastErr == nil {
			return nil, fmt.Errorf("request cancelled after %d attempt(s): %w", len(tried), err)
		}
		audit.Exhausted(len(tried), lastErr)
		metrics.RequestCount.WithLabelValues("none", decision.Template.ID, "exhausted").Inc()
		logging.OrchestratorError("[Orchestrator] race exhausted %d provider(s), last error: %v", len(tried), lastErr)
		return nil, &ExhaustedError{Tried: tried, Last: lastErr}
	}

	resp := normalize(winner, decision, composed)
	if winName != sel.Provider {
		resp.Confidence = decision.Confidence * fallbackConfidenceScale
		resp.Reason = fmt.Sprintf("%s (fallback from %s)", decision.Reason, sel.Provider)
		metrics.FallbackCount.Inc()
	}
	logging.Orchestrator("[Orchestrator] race won by %s", winName)
	return resp, nil
}
