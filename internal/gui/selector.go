package gui

import (
	"context"
	"fmt"
	"time"

	"github.com/GriffinCanCode/sketchgui/internal/content"
	"github.com/GriffinCanCode/sketchgui/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/sketchgui/internal/sandbox"
	"github.com/GriffinCanCode/sketchgui/internal/shared/id"
	"go.uber.org/zap"
)

// PageFetcher retrieves page markup
type PageFetcher interface {
	GetHTML(ctx context.Context, locator string) (string, error)
}

// Factory creates the sandbox for a selection
type Factory func(ctx context.Context) (*sandbox.Context, error)

// Committer applies a chain step to the session if gen is still current
type Committer interface {
	Commit(gen uint64, fn func(s *Session)) bool
}

// SelectorConfig holds the loading conventions
type SelectorConfig struct {
	Baseline      []string
	SketchName    string
	SketchSection string
	DefaultSketch string // empty disables the last fallback
}

// Selector replaces the live sandbox and drives the fallback chain
// page → sketch script → default sketch.
type Selector struct {
	cfg       SelectorConfig
	host      *sandbox.Host
	pages     PageFetcher
	scripts   sandbox.ScriptLoader
	session   *Session
	committer Committer
	logger    *zap.Logger
	metrics   *monitoring.Metrics
}

// step is one candidate of the chain
type step struct {
	kind     AttemptKind
	locator  string
	awaiting Phase
	loaded   Phase
	outcome  Outcome
	load     func(ctx context.Context, sb *sandbox.Context) error
}

// plan lists the candidates for project in the order they are tried
func (sel *Selector) plan(project string) []step {
	page := content.ProjectPage(project)
	sketch := content.ProjectSketch(project, sel.cfg.SketchName)

	steps := []step{
		{
			kind:     AttemptPage,
			locator:  page,
			awaiting: PhaseAwaitingPage,
			loaded:   PhasePageLoaded,
			outcome:  OutcomeSuccess,
			load: func(ctx context.Context, sb *sandbox.Context) error {
				markup, err := sel.pages.GetHTML(ctx, page)
				if err != nil {
					return err
				}
				return sb.PostMessage(ctx, markup)
			},
		},
		{
			kind:     AttemptScript,
			locator:  sketch,
			awaiting: PhaseAwaitingScript,
			loaded:   PhaseScriptLoaded,
			outcome:  OutcomeSuccess,
			load: func(ctx context.Context, sb *sandbox.Context) error {
				return sel.scripts.Load(ctx, sketch, sel.cfg.SketchSection, sb)
			},
		},
	}

	if sel.cfg.DefaultSketch != "" {
		fallback := sel.cfg.DefaultSketch
		steps = append(steps, step{
			kind:     AttemptDefault,
			locator:  fallback,
			awaiting: PhaseAwaitingDefaultScript,
			loaded:   PhaseTerminal,
			outcome:  OutcomeDegraded,
			load: func(ctx context.Context, sb *sandbox.Context) error {
				return sel.scripts.Load(ctx, fallback, sel.cfg.SketchSection, sb)
			},
		})
	}
	return steps
}

// Select tears down the live sandbox, creates a fresh one and starts the
// chain for project. The caller holds the session lock; the chain commits
// back through the Committer once the lock is released.
func (sel *Selector) Select(ctx context.Context, project string, factory Factory) (uint64, error) {
	s := sel.session

	sel.host.ClearPlaceholder()
	sel.teardown()

	s.Generation++
	gen := s.Generation
	s.Project = &project
	s.Selection = id.NewSelectionID()
	s.Phase = PhasePreparing
	s.Outcome = OutcomePending
	s.Attempts = nil
	s.BaselineErr = nil
	s.Updated = time.Now()

	sb, err := factory(ctx)
	if err != nil {
		s.Phase = PhaseTerminal
		s.Outcome = OutcomeFailed
		sel.metrics.RecordSelection(string(OutcomeFailed))
		sel.logger.Error("Failed to create sandbox",
			zap.String("project", project),
			zap.Error(err))
		return gen, fmt.Errorf("create sandbox: %w", err)
	}
	s.Sandbox = sb
	sel.metrics.SetSandboxesActive(1)

	sel.logger.Info("Selecting GUI",
		zap.String("project", project),
		zap.String("selection", s.Selection.String()),
		zap.String("sandbox", sb.ID.String()),
		zap.Uint64("generation", gen))

	go sel.run(ctx, gen, sb, project)
	return gen, nil
}

// teardown destroys the live sandbox, if any. The caller holds the session
// lock.
func (sel *Selector) teardown() {
	s := sel.session
	if s.Sandbox != nil {
		s.Sandbox.Destroy()
		s.Sandbox = nil
		sel.metrics.SetSandboxesActive(0)
	}
}

// run drives one selection's chain. Every result is committed under gen; a
// rejected commit means a newer selection owns the session and the chain
// stops without touching it.
func (sel *Selector) run(ctx context.Context, gen uint64, sb *sandbox.Context, project string) {
	logger := sel.logger.With(zap.String("project", project), zap.Uint64("generation", gen))
	defer sel.forwardConsole(logger, sb)

	if err := sb.Open(); err != nil {
		if sel.commit(logger, gen, func(s *Session) {
			s.Phase = PhaseTerminal
			s.Outcome = OutcomeFailed
		}) {
			logger.Warn("Sandbox template failed to load", zap.Error(err))
			sel.metrics.RecordSelection(string(OutcomeFailed))
		}
		return
	}

	baselineErr := sb.LoadBaseline(ctx, sel.scripts, sel.cfg.Baseline)
	steps := sel.plan(project)

	if !sel.commit(logger, gen, func(s *Session) {
		s.BaselineErr = baselineErr
		s.Phase = steps[0].awaiting
		s.Attempts = append(s.Attempts, LoadAttempt{Kind: steps[0].kind, Locator: steps[0].locator, Outcome: AttemptPending})
	}) {
		return
	}
	if baselineErr != nil {
		logger.Warn("Baseline resources failed to load", zap.Error(baselineErr))
	}

	for i, st := range steps {
		start := time.Now()
		err := st.load(ctx, sb)
		sel.metrics.RecordAttempt(string(st.kind), err == nil, time.Since(start))

		var next *step
		if i+1 < len(steps) {
			next = &steps[i+1]
		}

		committed := sel.commit(logger, gen, func(s *Session) {
			attempt := s.attempt(st.kind)
			if err == nil {
				attempt.Outcome = AttemptSucceeded
				s.Phase = st.loaded
				s.Outcome = st.outcome
				return
			}
			attempt.Outcome = AttemptFailed
			attempt.Error = err.Error()
			if next == nil {
				s.Phase = PhaseTerminal
				s.Outcome = OutcomeFailed
				return
			}
			s.Phase = next.awaiting
			s.Attempts = append(s.Attempts, LoadAttempt{Kind: next.kind, Locator: next.locator, Outcome: AttemptPending})
		})
		if !committed {
			return
		}

		switch {
		case err == nil:
			logger.Info("GUI loaded", zap.String("kind", string(st.kind)), zap.String("locator", st.locator))
			sel.metrics.RecordSelection(string(st.outcome))
			return
		case next == nil:
			logger.Warn("No GUI could be loaded", zap.String("locator", st.locator), zap.Error(err))
			sel.metrics.RecordSelection(string(OutcomeFailed))
			return
		default:
			logger.Info("GUI candidate unavailable, trying next",
				zap.String("locator", st.locator),
				zap.String("next", next.locator),
				zap.Error(err))
		}
	}
}

func (sel *Selector) commit(logger *zap.Logger, gen uint64, fn func(s *Session)) bool {
	if sel.committer.Commit(gen, fn) {
		return true
	}
	sel.metrics.IncStale()
	logger.Debug("Discarding stale completion")
	return false
}

func (sel *Selector) forwardConsole(logger *zap.Logger, sb *sandbox.Context) {
	for _, entry := range sb.Console() {
		logger.Debug("Sandbox console",
			zap.String("level", entry.Level),
			zap.String("message", entry.Message),
			zap.String("source", entry.Source))
	}
}
