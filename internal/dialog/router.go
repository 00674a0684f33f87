package dialog

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dialogpipe/dialogpipe/internal/models"
	"github.com/dialogpipe/dialogpipe/internal/recognition"
)

// DefaultBotVersion is assumed when no version option is given.
const DefaultBotVersion = 1.0

// Opts holds configuration options for the router.
type Opts struct {
	Recognition *recognition.Helper
	Knowledge   recognition.KnowledgeBase
	BotVersion  float64
}

// Option defines a configuration option for the router.
type Option func(*Opts)

// WithRecognitionHelper sets the turn-caching recognition helper.
func WithRecognitionHelper(h *recognition.Helper) Option {
	return func(o *Opts) { o.Recognition = h }
}

// WithKnowledgeBase sets the FAQ knowledge base.
func WithKnowledgeBase(kb recognition.KnowledgeBase) Option {
	return func(o *Opts) { o.Knowledge = kb }
}

// WithBotVersion sets the bot version used for the per-user version gates.
func WithBotVersion(v float64) Option {
	return func(o *Opts) { o.BotVersion = v }
}

// Router owns the turn entrypoint: it resumes suspended dialogs, runs the
// routing sweep when the previous dialog completed, and falls back to the main
// dialog on a fresh conversation.
type Router struct {
	engine      *Engine
	registry    *Registry
	recognition *recognition.Helper
	knowledge   recognition.KnowledgeBase
}

// NewRouter builds the full dialog suite: registry, engine, shared
// disambiguator and every topic dialog, wired together.
func NewRouter(opts ...Option) (*Router, error) {
	cfg := Opts{BotVersion: DefaultBotVersion}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Recognition == nil {
		return nil, models.ErrMissingRecognizer
	}
	if cfg.Knowledge == nil {
		return nil, models.ErrMissingKnowledge
	}

	generic, err := NewGenericDisambiguator(cfg.Knowledge)
	if err != nil {
		return nil, err
	}

	registry := NewRegistry()
	dialogs := []Dialog{
		NewMainDialog(),
		NewOnboardingDialog(generic, cfg.BotVersion),
		NewMenuDialog(generic, cfg.BotVersion),
		NewFarewellDialog(generic, cfg.BotVersion),
		NewPurchaseDialog(generic),
		NewBrandDialog(generic),
		NewPriceDialog(generic),
		NewFAQDialog(cfg.Knowledge),
		NewExceptionDialog(),
	}
	for _, d := range dialogs {
		if err := registry.Add(d); err != nil {
			return nil, err
		}
	}

	engine, err := NewEngine(registry)
	if err != nil {
		return nil, err
	}

	r := &Router{
		engine:      engine,
		registry:    registry,
		recognition: cfg.Recognition,
		knowledge:   cfg.Knowledge,
	}
	engine.SetRouteFunc(r.selectDialog)
	slog.Info("Router created", "dialogs", len(dialogs), "botVersion", cfg.BotVersion)
	return r, nil
}

// Registry exposes the dialog registry, mainly for inspection and tests.
func (r *Router) Registry() *Registry { return r.registry }

// ContinueTurn is the single entrypoint for an inbound turn. A completed
// dialog triggers a routing sweep first; otherwise the suspended dialog
// resumes, and an empty stack starts the main dialog.
func (r *Router) ContinueTurn(ctx context.Context, tc *TurnContext) error {
	complete, err := tc.Accessors.DialogComplete(ctx)
	if err != nil {
		return err
	}
	if complete {
		id, options, found, err := r.selectDialog(ctx, tc, false)
		if err != nil {
			return err
		}
		if found {
			slog.Debug("Router rerouting completed dialog", "dialog", id)
			_, err = r.engine.StartFresh(ctx, tc, id, options)
			return err
		}
	}

	status, err := r.engine.ContinueDialog(ctx, tc)
	if err != nil {
		return err
	}
	if status == StatusEmpty {
		_, err = r.engine.BeginDialog(ctx, tc, models.DialogMain, nil)
		return err
	}
	return nil
}

type routeOutcome struct {
	dialog    models.DialogID
	canHandle bool
}

// selectDialog runs the routing sweep: recognize the turn (cached for reuse by
// the selected dialog), poll every routable dialog concurrently, then pick the
// highest-priority claimant. A failed candidate logs and counts as a no.
func (r *Router) selectDialog(ctx context.Context, tc *TurnContext, faqAlreadyPerformed bool) (models.DialogID, map[string]string, bool, error) {
	res, err := r.recognition.Current(ctx, tc.Accessors, tc.Turn.Text)
	if err != nil {
		return models.DialogNone, nil, false, models.Describe(err, "recognizing input for routing sweep")
	}
	user, err := tc.Accessors.User(ctx)
	if err != nil {
		return models.DialogNone, nil, false, err
	}
	in := RoutingInput{Text: tc.Turn.Text, Result: res, UserData: user.Data}

	outcomes := make([]routeOutcome, len(models.RoutingPriority))
	var wg sync.WaitGroup
	for i, id := range models.RoutingPriority {
		d, err := r.registry.Get(id)
		if err != nil {
			slog.Error("Router sweep skipped unregistered dialog", "dialog", id, "error", err)
			continue
		}
		routable, ok := d.(Routable)
		if !ok {
			slog.Error("Router sweep skipped non-routable dialog", "dialog", id)
			continue
		}
		wg.Add(1)
		go func(i int, rd Routable) {
			defer wg.Done()
			chr, err := rd.CanHandle(ctx, in)
			if err != nil {
				slog.Error("Router CanHandle poll failed", "dialog", rd.ID(), "error", err)
				outcomes[i] = routeOutcome{dialog: rd.ID()}
				return
			}
			outcomes[i] = routeOutcome{dialog: chr.Dialog, canHandle: chr.CanHandle}
		}(i, routable)
	}
	wg.Wait()

	for _, outcome := range outcomes {
		if !outcome.canHandle {
			continue
		}
		selected := outcome.dialog
		if faqAlreadyPerformed && selected == models.DialogFAQ {
			// The FAQ already ran this routing cycle; a second hit would loop.
			selected = models.DialogException
		}
		slog.Debug("Router sweep selected dialog", "dialog", selected)
		return selected, nil, true, nil
	}
	slog.Debug("Router sweep found no candidate")
	return models.DialogNone, nil, false, nil
}
