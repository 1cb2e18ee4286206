package gui

import (
	"time"

	"github.com/GriffinCanCode/sketchgui/internal/sandbox"
	"github.com/GriffinCanCode/sketchgui/internal/shared/id"
)

// Phase is the position of a selection in its fallback chain
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePreparing
	PhaseAwaitingPage
	PhasePageLoaded
	PhaseAwaitingScript
	PhaseScriptLoaded
	PhaseAwaitingDefaultScript
	PhaseTerminal
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePreparing:
		return "preparing"
	case PhaseAwaitingPage:
		return "awaiting_page"
	case PhasePageLoaded:
		return "page_loaded"
	case PhaseAwaitingScript:
		return "awaiting_script"
	case PhaseScriptLoaded:
		return "script_loaded"
	case PhaseAwaitingDefaultScript:
		return "awaiting_default_script"
	case PhaseTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Outcome summarizes how a selection ended
type Outcome string

const (
	OutcomePending  Outcome = "pending"
	OutcomeSuccess  Outcome = "success"
	OutcomeDegraded Outcome = "degraded" // default sketch running
	OutcomeFailed   Outcome = "failed"
)

// AttemptKind names a candidate in the fallback chain
type AttemptKind string

const (
	AttemptPage    AttemptKind = "page"
	AttemptScript  AttemptKind = "script"
	AttemptDefault AttemptKind = "default"
)

// AttemptOutcome is the state of one load attempt
type AttemptOutcome string

const (
	AttemptPending   AttemptOutcome = "pending"
	AttemptSucceeded AttemptOutcome = "succeeded"
	AttemptFailed    AttemptOutcome = "failed"
)

// LoadAttempt records one candidate tried by a selection
type LoadAttempt struct {
	Kind    AttemptKind    `json:"kind"`
	Locator string         `json:"locator"`
	Outcome AttemptOutcome `json:"outcome"`
	Error   string         `json:"error,omitempty"`
}

// Session is the mutable GUI state. Handler guards it with its mutex.
type Session struct {
	Project        *string
	Sandbox        *sandbox.Context
	ListenerActive bool
	Resolving      bool

	// Generation increases with every selection and teardown; chain
	// completions carry the generation they were started under.
	Generation  uint64
	Selection   id.SelectionID
	Phase       Phase
	Outcome     Outcome
	Attempts    []LoadAttempt
	BaselineErr error
	Updated     time.Time
}

// Snapshot is a read-only copy of the session for viewers
type Snapshot struct {
	Project        *string       `json:"project"`
	Location       string        `json:"location"`
	SandboxID      string        `json:"sandbox_id,omitempty"`
	SandboxLive    bool          `json:"sandbox_live"`
	Placeholder    bool          `json:"placeholder"`
	ListenerActive bool          `json:"listener_active"`
	Resolving      bool          `json:"resolving"`
	Generation     uint64        `json:"generation"`
	Selection      string        `json:"selection,omitempty"`
	Phase          string        `json:"phase"`
	Outcome        Outcome       `json:"outcome"`
	Attempts       []LoadAttempt `json:"attempts"`
	BaselineError  string        `json:"baseline_error,omitempty"`
	Updated        time.Time     `json:"updated"`
}

// reset returns the session to idle, keeping the generation counter
func (s *Session) reset() {
	s.Project = nil
	s.Sandbox = nil
	s.Selection = ""
	s.Phase = PhaseIdle
	s.Outcome = OutcomePending
	s.Attempts = nil
	s.BaselineErr = nil
	s.Updated = time.Now()
}

// attempt returns the latest attempt of kind, if any
func (s *Session) attempt(kind AttemptKind) *LoadAttempt {
	for i := len(s.Attempts) - 1; i >= 0; i-- {
		if s.Attempts[i].Kind == kind {
			return &s.Attempts[i]
		}
	}
	return nil
}

func (s *Session) snapshot(location string, placeholder bool) Snapshot {
	snap := Snapshot{
		Location:       location,
		Placeholder:    placeholder,
		ListenerActive: s.ListenerActive,
		Resolving:      s.Resolving,
		Generation:     s.Generation,
		Selection:      s.Selection.String(),
		Phase:          s.Phase.String(),
		Outcome:        s.Outcome,
		Attempts:       append([]LoadAttempt{}, s.Attempts...),
		Updated:        s.Updated,
	}
	if s.Project != nil {
		name := *s.Project
		snap.Project = &name
	}
	if s.Sandbox != nil {
		snap.SandboxID = s.Sandbox.ID.String()
		snap.SandboxLive = s.Sandbox.Live()
	}
	if s.BaselineErr != nil {
		snap.BaselineError = s.BaselineErr.Error()
	}
	return snap
}
