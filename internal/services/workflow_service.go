package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"underwriting-service/internal/config"
	"underwriting-service/internal/models"
	"underwriting-service/internal/repository"
	"underwriting-service/internal/workflow"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// WorkflowService fronts the underwriting engine: it owns session id
// assignment, exposes checkpoint lookups and runs the stale-session
// sweeper.
type WorkflowService struct {
	engine      *workflow.Engine
	checkpoints *repository.CheckpointRepository
	questions   *repository.QuestionRepository
	cfg         config.WorkflowConfig
	sweeper     *cron.Cron
}

func NewWorkflowService(
	engine *workflow.Engine,
	checkpoints *repository.CheckpointRepository,
	questions *repository.QuestionRepository,
	cfg config.WorkflowConfig,
) *WorkflowService {
	return &WorkflowService{
		engine:      engine,
		checkpoints: checkpoints,
		questions:   questions,
		cfg:         cfg,
	}
}

// RunSession drives a session through its remaining stages. An empty
// session id starts a fresh session; a known id resumes it. The
// returned checkpoint is the session's cumulative state, whatever its
// outcome.
func (s *WorkflowService) RunSession(ctx context.Context, sessionID string, customerData map[string]any, answers map[string]string) (*models.WorkflowCheckpoint, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return s.engine.Execute(ctx, sessionID, &workflow.SessionInput{
		CustomerData: customerData,
		Answers:      answers,
	})
}

// GetSession returns the stored checkpoint for a session id.
func (s *WorkflowService) GetSession(ctx context.Context, sessionID string) (*models.WorkflowCheckpoint, bool) {
	return s.checkpoints.LoadCheckpoint(ctx, sessionID)
}

// Questions returns the underwriting question catalogue shown to the
// applicant before the session starts.
func (s *WorkflowService) Questions(ctx context.Context) []models.UnderwritingQuestion {
	return s.questions.Questions(ctx)
}

// Stages returns the pipeline's fixed stage order.
func (s *WorkflowService) Stages() []models.StageName {
	return s.engine.StageNames()
}

// StartSweeper schedules the stale-checkpoint sweep on the configured
// cron expression.
func (s *WorkflowService) StartSweeper() error {
	if s.sweeper != nil {
		return fmt.Errorf("sweeper already started")
	}
	c := cron.New()
	_, err := c.AddFunc(s.cfg.SweepSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		swept, err := s.checkpoints.SweepStale(ctx, time.Now().UTC())
		if err != nil {
			slog.Error("Stale checkpoint sweep failed", "error", err)
			return
		}
		if swept > 0 {
			slog.Info("Expired stale underwriting sessions", "count", swept)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule checkpoint sweep %q: %w", s.cfg.SweepSchedule, err)
	}
	c.Start()
	s.sweeper = c
	slog.Info("Checkpoint sweeper scheduled", "schedule", s.cfg.SweepSchedule, "stale_after", s.cfg.StaleAfter)
	return nil
}

// StopSweeper halts the sweep schedule and waits for a running sweep.
func (s *WorkflowService) StopSweeper() {
	if s.sweeper == nil {
		return
	}
	<-s.sweeper.Stop().Done()
	s.sweeper = nil
}
