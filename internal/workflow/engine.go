// Package workflow drives the staged underwriting pipeline: an ordered,
// fixed list of stage processors from intake through the final report,
// with a
// checkpoint persisted after every stage and resumable execution keyed
// by a durable session identifier.
package workflow

import (
	"context"
	"log/slog"
	"time"

	"underwriting-service/internal/config"
	"underwriting-service/internal/event"
	"underwriting-service/internal/models"

	"github.com/google/uuid"
)

// SessionStore persists workflow checkpoints and issued policies. The
// first checkpoint save allocates the session's quote number; re-saving
// the same session updates the same record.
type SessionStore interface {
	SaveCheckpoint(ctx context.Context, cp *models.WorkflowCheckpoint) error
	LoadCheckpoint(ctx context.Context, sessionID string) (*models.WorkflowCheckpoint, bool)
	SaveIssuedPolicy(ctx context.Context, cp *models.WorkflowCheckpoint) error
}

// QuestionSource supplies the underwriting questions for the
// eligibility gate.
type QuestionSource interface {
	Questions(ctx context.Context) []models.UnderwritingQuestion
}

// DocumentArchiver stores the final policy wording once a policy issues.
type DocumentArchiver interface {
	ArchivePolicyDocument(ctx context.Context, policyNumber, document string) (string, error)
}

// EventPublisher pushes lifecycle events for downstream services.
type EventPublisher interface {
	Publish(ctx context.Context, evt event.PolicyLifecycleEvent) error
}

// SessionInput is the data submitted with a session: the raw customer
// data blob and the underwriting answers keyed by question id.
type SessionInput struct {
	CustomerData map[string]any
	Answers      map[string]string
}

// Outcome tells the engine whether to advance past a completed stage.
type Outcome int

const (
	Continue Outcome = iota
	// Halt marks a business stop (the eligibility gate, a blocked
	// review), not an error: the checkpoint is persisted and the
	// session ends.
	Halt
)

type stageFunc func(ctx context.Context, cp *models.WorkflowCheckpoint, in *SessionInput) (Outcome, error)

// Stage pairs a stage name with its processor. The prior artifact is
// the cumulative checkpoint; the processor appends its own artifact.
type Stage struct {
	Name models.StageName
	run  stageFunc
}

type Engine struct {
	cfg       config.WorkflowConfig
	gen       Generator
	docGen    Generator
	store     SessionStore
	questions QuestionSource
	archiver  DocumentArchiver
	publisher EventPublisher
	stages    []Stage
}

func NewEngine(
	cfg config.WorkflowConfig,
	gen Generator,
	docGen Generator,
	store SessionStore,
	questions QuestionSource,
	archiver DocumentArchiver,
	publisher EventPublisher,
) *Engine {
	e := &Engine{
		cfg:       cfg,
		gen:       gen,
		docGen:    docGen,
		store:     store,
		questions: questions,
		archiver:  archiver,
		publisher: publisher,
	}
	e.stages = []Stage{
		{Name: models.StageIntake, run: e.runIntake},
		{Name: models.StageProfile, run: e.runProfile},
		{Name: models.StageUnderwriting, run: e.runUnderwriting},
		{Name: models.StageRisk, run: e.runRisk},
		{Name: models.StageCoverage, run: e.runCoverage},
		{Name: models.StageDrafting, run: e.runDrafting},
		{Name: models.StagePricing, run: e.runPricing},
		{Name: models.StageQuote, run: e.runQuote},
		{Name: models.StageReview, run: e.runReview},
		{Name: models.StageIssuance, run: e.runIssuance},
		{Name: models.StageMonitoring, run: e.runMonitoring},
		{Name: models.StageSummary, run: e.runSummary},
	}
	return e
}

// StageNames returns the fixed stage order.
func (e *Engine) StageNames() []models.StageName {
	names := make([]models.StageName, 0, len(e.stages))
	for _, s := range e.stages {
		names = append(names, s.Name)
	}
	return names
}

// Execute runs the session's remaining stages. A session id that has a
// checkpoint resumes after its last completed stage; a terminal session
// returns its final checkpoint unchanged. Stage errors are recorded
// into the checkpoint, never returned: the only error Execute itself
// reports is context cancellation.
func (e *Engine) Execute(ctx context.Context, sessionID string, in *SessionInput) (*models.WorkflowCheckpoint, error) {
	if in == nil {
		in = &SessionInput{}
	}

	cp, found := e.store.LoadCheckpoint(ctx, sessionID)
	if !found {
		cp = &models.WorkflowCheckpoint{
			SessionID: sessionID,
			Status:    models.StatusInProgress,
		}
		slog.Info("Starting new underwriting session", "session_id", sessionID)
	} else {
		if cp.Status.IsTerminal() {
			slog.Info("Session already terminal", "session_id", sessionID, "status", cp.Status)
			return cp, nil
		}
		slog.Info("Resuming underwriting session",
			"session_id", sessionID, "last_completed_stage", cp.Stage)
	}

	for i := e.resumeIndex(cp); i < len(e.stages); i++ {
		if err := ctx.Err(); err != nil {
			return cp, err
		}

		stage := e.stages[i]
		outcome, err := stage.run(ctx, cp, in)
		cp.Stage = stage.Name
		cp.LastUpdated = time.Now().UTC()

		if err != nil {
			e.recordFailure(ctx, cp, stage.Name, err)
			return cp, nil
		}

		e.saveCheckpoint(ctx, cp)

		if outcome == Halt {
			slog.Info("Session halted by business rule",
				"session_id", sessionID, "stage", stage.Name, "status", cp.Status)
			if cp.Status == models.StatusIneligible {
				e.publish(ctx, event.PolicyLifecycleEvent{
					EventType:   event.EventSessionIneligible,
					SessionID:   sessionID,
					QuoteNumber: cp.QuoteNumber,
					Stage:       string(stage.Name),
					Reason:      cp.IneligibilityReason,
					OccurredAt:  time.Now().UTC(),
				})
			}
			return cp, nil
		}
	}

	slog.Info("Underwriting session completed",
		"session_id", sessionID, "status", cp.Status, "quote_number", cp.QuoteNumber)
	return cp, nil
}

// resumeIndex returns the index of the first stage still to run.
func (e *Engine) resumeIndex(cp *models.WorkflowCheckpoint) int {
	if cp.Stage == "" {
		return 0
	}
	for i, stage := range e.stages {
		if stage.Name == cp.Stage {
			// A session halted by a failed review resumes at the
			// review itself, never past it.
			if stage.Name == models.StageReview && !cp.ReviewPassed() {
				return i
			}
			return i + 1
		}
	}
	slog.Warn("Checkpoint names unknown stage, restarting session",
		"session_id", cp.SessionID, "stage", cp.Stage)
	return 0
}

// recordFailure captures an unrecoverable stage error as a structured
// failure on the checkpoint. The session stops advancing; the process
// and other sessions are unaffected.
func (e *Engine) recordFailure(ctx context.Context, cp *models.WorkflowCheckpoint, stage models.StageName, err error) {
	failure := &models.StageFailure{
		CorrelationID: uuid.NewString(),
		Stage:         stage,
		Message:       err.Error(),
		OccurredAt:    time.Now().UTC(),
	}
	cp.Failure = failure
	cp.Status = models.StatusError

	slog.Error("Stage failed, session halted",
		"session_id", cp.SessionID,
		"stage", stage,
		"correlation_id", failure.CorrelationID,
		"error", err)

	e.saveCheckpoint(ctx, cp)
	e.publish(ctx, event.PolicyLifecycleEvent{
		EventType:     event.EventStageFailed,
		SessionID:     cp.SessionID,
		QuoteNumber:   cp.QuoteNumber,
		Stage:         string(stage),
		Reason:        err.Error(),
		CorrelationID: failure.CorrelationID,
		OccurredAt:    time.Now().UTC(),
	})
}

// saveCheckpoint persists the cumulative state. Persistence problems are
// absorbed by the gateway's mirror, so a failure here is log-only.
func (e *Engine) saveCheckpoint(ctx context.Context, cp *models.WorkflowCheckpoint) {
	if err := e.store.SaveCheckpoint(ctx, cp); err != nil {
		slog.Warn("Failed to persist checkpoint",
			"session_id", cp.SessionID, "stage", cp.Stage, "error", err)
	}
}

func (e *Engine) publish(ctx context.Context, evt event.PolicyLifecycleEvent) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, evt); err != nil {
		slog.Warn("Failed to publish lifecycle event",
			"event_type", evt.EventType, "session_id", evt.SessionID, "error", err)
	}
}
