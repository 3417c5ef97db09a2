package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/qmuntal/stateless"

	"github.com/comigor/gitmaster-go/internal/githuburl"
	"github.com/comigor/gitmaster-go/internal/logger"
)

// Stage is where a landing-page submission currently is.
type Stage string

const (
	StageIdle            Stage = "idle"
	StageCreatingSession Stage = "creating_session"
	StageAnalyzing       Stage = "analyzing"
	StageReady           Stage = "ready"
	StageDiscarded       Stage = "discarded" // Terminal: the session must not be used
)

type flowTrigger string

const (
	triggerSubmit         flowTrigger = "Submit"
	triggerSessionCreated flowTrigger = "SessionCreated"
	triggerAnalyzed       flowTrigger = "Analyzed"
	triggerFailed         flowTrigger = "Failed"
)

var (
	ErrCreateSession = errors.New("failed to create session")
	ErrAnalyze       = errors.New("failed to analyze repository")
)

// Session is a backend session that went through the analysis flow.
type Session struct {
	ID         string
	Repository githuburl.Repository
	Stage      Stage
}

// Analyzer runs the landing page flow: validate the URL, create a session, analyze.
type Analyzer struct {
	backend Backend
}

// NewAnalyzer creates a new Analyzer.
func NewAnalyzer(b Backend) *Analyzer {
	return &Analyzer{backend: b}
}

// Start validates rawURL and, only if it is a GitHub repository URL, creates a session and
// asks the backend to analyze it. Any failure discards the session; nothing is retried.
func (a *Analyzer) Start(ctx context.Context, rawURL string, notify Notifier) (*Session, error) {
	if notify == nil {
		notify = Discard
	}

	repo, err := githuburl.Parse(rawURL)
	if err != nil {
		notify.Notify(urlNotice(err))
		return nil, err
	}

	flow := newAnalysisFlow(notify)
	if err := flow.FireCtx(ctx, triggerSubmit); err != nil {
		return nil, err
	}

	sessionID, err := a.backend.CreateSession(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrCreateSession, err)
		a.discard(ctx, flow, repo, "", err)
		return nil, err
	}
	logger.L.Info("session created", "session_id", sessionID, "repository", repo.String())
	if err := flow.FireCtx(ctx, triggerSessionCreated, sessionID); err != nil {
		return nil, err
	}

	if err := a.backend.Analyze(ctx, sessionID, repo.URL); err != nil {
		err = fmt.Errorf("%w: %w", ErrAnalyze, err)
		a.discard(ctx, flow, repo, sessionID, err)
		return nil, err
	}
	if err := flow.FireCtx(ctx, triggerAnalyzed); err != nil {
		return nil, err
	}
	logger.L.Info("repository analyzed", "session_id", sessionID, "repository", repo.String())

	return &Session{ID: sessionID, Repository: repo, Stage: flow.MustState().(Stage)}, nil
}

func (a *Analyzer) discard(ctx context.Context, flow *stateless.StateMachine, repo githuburl.Repository, sessionID string, cause error) {
	logger.L.Warn("analysis flow aborted", "session_id", sessionID, "repository", repo.String(), "error", cause)
	if fireErr := flow.FireCtx(ctx, triggerFailed, cause); fireErr != nil {
		logger.L.Warn("FSM fire error", "error", fireErr)
	}
}

// newAnalysisFlow builds the idle → creating_session → analyzing → ready machine.
// Notices are emitted when stages are entered.
func newAnalysisFlow(notify Notifier) *stateless.StateMachine {
	fsm := stateless.NewStateMachine(StageIdle)

	fsm.Configure(StageIdle).
		Permit(triggerSubmit, StageCreatingSession)

	fsm.Configure(StageCreatingSession).
		Permit(triggerSessionCreated, StageAnalyzing).
		Permit(triggerFailed, StageDiscarded)

	fsm.Configure(StageAnalyzing).
		OnEntry(func(_ context.Context, _ ...any) error {
			notify.Notify(Notice{Level: LevelInfo, Title: "Session Created", Description: "Starting repository analysis..."})
			return nil
		}).
		Permit(triggerAnalyzed, StageReady).
		Permit(triggerFailed, StageDiscarded)

	fsm.Configure(StageReady).
		OnEntry(func(_ context.Context, _ ...any) error {
			notify.Notify(Notice{Level: LevelInfo, Title: "Analysis Complete!", Description: "Repository analyzed successfully. Redirecting to chat..."})
			return nil
		})

	fsm.Configure(StageDiscarded).
		OnEntry(func(_ context.Context, args ...any) error {
			var cause error
			if len(args) > 0 {
				cause, _ = args[0].(error)
			}
			notify.Notify(Notice{Level: LevelError, Title: "Analysis Failed", Description: failureDescription(cause)})
			return nil
		})

	return fsm
}

func failureDescription(err error) string {
	switch {
	case errors.Is(err, ErrCreateSession):
		return "Failed to create session"
	case errors.Is(err, ErrAnalyze):
		return "Failed to analyze repository"
	default:
		return "Something went wrong. Please try again."
	}
}

func urlNotice(err error) Notice {
	if errors.Is(err, githuburl.ErrEmpty) {
		return Notice{Level: LevelError, Title: "Repository URL Required", Description: "Please enter a valid GitHub repository URL"}
	}
	return Notice{Level: LevelError, Title: "Invalid URL Format", Description: "Please enter a valid GitHub repository URL (e.g., https://github.com/user/repo)"}
}
