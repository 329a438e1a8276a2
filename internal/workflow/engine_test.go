package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"underwriting-service/internal/config"
	"underwriting-service/internal/event"
	"underwriting-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedGenerator answers prompts by matching the role tag each stage
// prompt opens with. Unmatched prompts fail like a transport error.
type scriptedGenerator struct {
	mu        sync.Mutex
	responses map[string]string
	prompts   []string
}

func (g *scriptedGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()
	for marker, response := range g.responses {
		if strings.Contains(prompt, marker) {
			return response, nil
		}
	}
	return "", fmt.Errorf("no scripted response for prompt")
}

func (g *scriptedGenerator) sawMarker(marker string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, p := range g.prompts {
		if strings.Contains(p, marker) {
			return true
		}
	}
	return false
}

type failingGenerator struct{}

func (failingGenerator) Generate(context.Context, string) (string, error) {
	return "", fmt.Errorf("generation service unavailable")
}

// memorySessionStore mimics the checkpoint repository contract: the
// first save of a session allocates its quote number, and records are
// stored as independent copies.
type memorySessionStore struct {
	mu          sync.Mutex
	checkpoints map[string]*models.WorkflowCheckpoint
	issued      map[string]*models.WorkflowCheckpoint
	nextQuote   int64
	saves       int
}

func newMemorySessionStore() *memorySessionStore {
	return &memorySessionStore{
		checkpoints: map[string]*models.WorkflowCheckpoint{},
		issued:      map[string]*models.WorkflowCheckpoint{},
		nextQuote:   100000,
	}
}

func copyCheckpoint(cp *models.WorkflowCheckpoint) *models.WorkflowCheckpoint {
	payload, _ := json.Marshal(cp)
	out := &models.WorkflowCheckpoint{}
	_ = json.Unmarshal(payload, out)
	return out
}

func (s *memorySessionStore) SaveCheckpoint(_ context.Context, cp *models.WorkflowCheckpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cp.QuoteNumber == 0 {
		cp.QuoteNumber = s.nextQuote
		s.nextQuote += 10
	}
	s.saves++
	s.checkpoints[cp.SessionID] = copyCheckpoint(cp)
	return nil
}

func (s *memorySessionStore) LoadCheckpoint(_ context.Context, sessionID string) (*models.WorkflowCheckpoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp, ok := s.checkpoints[sessionID]
	if !ok {
		return nil, false
	}
	return copyCheckpoint(cp), true
}

func (s *memorySessionStore) SaveIssuedPolicy(_ context.Context, cp *models.WorkflowCheckpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued[cp.SessionID] = copyCheckpoint(cp)
	return nil
}

type staticQuestions struct{}

func (staticQuestions) Questions(context.Context) []models.UnderwritingQuestion {
	return DefaultUnderwritingQuestions()
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []event.PolicyLifecycleEvent
}

func (p *recordingPublisher) Publish(_ context.Context, evt event.PolicyLifecycleEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) byType(t event.LifecycleEventType) []event.PolicyLifecycleEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []event.PolicyLifecycleEvent
	for _, evt := range p.events {
		if evt.EventType == t {
			out = append(out, evt)
		}
	}
	return out
}

type recordingArchiver struct {
	mu        sync.Mutex
	documents map[string]string
}

func (a *recordingArchiver) ArchivePolicyDocument(_ context.Context, policyNumber, document string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.documents == nil {
		a.documents = map[string]string{}
	}
	a.documents[policyNumber] = document
	return "policy-documents/" + policyNumber + ".txt", nil
}

func testWorkflowConfig() config.WorkflowConfig {
	return config.WorkflowConfig{
		MaxGenerateAttempts: 2,
		RetryBackoff:        time.Millisecond,
		CallTimeout:         time.Second,
		QuotePrefix:         "QUOTE",
		PolicyPrefix:        "MV",
		SequenceIncrement:   10,
		SequenceStart:       100000,
		StaleAfter:          72 * time.Hour,
	}
}

func happyPathResponses() map[string]string {
	return map[string]string{
		"Intake agent":       `{"name": "Avery Park", "dob": "1990-04-02", "address": "12 Elm St", "contact": {"phone": "555-0101", "email": "avery@example.com"}}`,
		"Profiling agent":    `{"name": "Avery Park", "vehicle_details": {"make": "Toyota", "model": "Corolla", "year": "2021", "vin": "JT2BG22K1W0123456"}, "driving_history": {"violations": "none", "accidents": "none", "years_licensed": "8"}, "coverage_preferences": ["collision"]}`,
		"Risk evaluation":    "```json\n{\"riskScore\": 3.5, \"riskFactors\": [\"clean record\"]}\n```",
		"Coverage modeling":  `Here is the design: {"coverages": ["Collision", "Liability"], "limits": {"collision": 50000}, "deductibles": {"collision": 500}}`,
		"Policy drafting":    "POLICY WORDING\nSection 1. Coverage.",
		"Document editing":   "POLICY WORDING (final)\nSection 1. Coverage.",
		"Pricing agent":      `{"basePremium": 600, "finalPremium": 654.30}`,
		"Quotation agent":    "Your annual premium is $654.30.",
		"Internal approval":  `{"approved": true, "reasons": ""}`,
		"Regulatory review":  `{"compliance": true, "issues": ""}`,
		"Issuance agent":     `{"policyNumber": "NOT-THE-REAL-ONE", "startDate": "2026-08-31", "endDate": "2027-08-31"}`,
		"Monitoring agent":   `{"monitoringStatus": "Active"}`,
		"Coordinating agent": "Policy MV100000 issued to Avery Park at an annual premium of $654.30.",
	}
}

func eligibleAnswers() map[string]string {
	return map[string]string{"uw1": "Yes", "uw2": "Yes", "uw3": "Yes", "uw4": "No"}
}

func newTestEngine(gen Generator, store SessionStore, publisher EventPublisher, archiver DocumentArchiver) *Engine {
	return NewEngine(testWorkflowConfig(), gen, gen, store, staticQuestions{}, archiver, publisher)
}

func TestExecuteFullPipeline(t *testing.T) {
	gen := &scriptedGenerator{responses: happyPathResponses()}
	store := newMemorySessionStore()
	publisher := &recordingPublisher{}
	archiver := &recordingArchiver{}
	engine := newTestEngine(gen, store, publisher, archiver)

	cp, err := engine.Execute(context.Background(), "sess-1", &SessionInput{
		CustomerData: map[string]any{"name": "Avery Park"},
		Answers:      eligibleAnswers(),
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusActive, cp.Status)
	assert.Equal(t, models.StageSummary, cp.Stage)
	assert.Nil(t, cp.Failure)

	require.NotNil(t, cp.Profile)
	assert.Equal(t, "Avery Park", cp.Profile.Name)
	assert.Equal(t, "Toyota", cp.Profile.Vehicle.Make)
	assert.True(t, cp.Profile.Eligible)

	require.NotNil(t, cp.Risk)
	assert.Equal(t, 3.5, cp.Risk.RiskScore)
	require.NotNil(t, cp.Coverage)
	assert.Equal(t, []string{"Collision", "Liability"}, cp.Coverage.Coverages)
	require.NotNil(t, cp.Pricing)
	assert.Equal(t, 654.30, cp.Pricing.FinalPremium)
	assert.Equal(t, "POLICY WORDING (final)\nSection 1. Coverage.", cp.PolicyDocument)
	assert.Equal(t, "Your annual premium is $654.30.", cp.QuoteDetails)

	assert.Equal(t, int64(100000), cp.QuoteNumber)
	require.NotNil(t, cp.Issuance)
	assert.Equal(t, "MV100000", cp.Issuance.PolicyNumber)
	assert.Equal(t, "2026-08-31", cp.Issuance.StartDate)
	require.NotNil(t, cp.Monitoring)
	assert.Equal(t, "Active", cp.Monitoring.MonitoringStatus)

	require.NotNil(t, cp.InternalApproval)
	assert.True(t, cp.InternalApproval.Approved)
	require.NotNil(t, cp.Compliance)
	assert.True(t, cp.Compliance.Compliant)
	assert.Equal(t, "Policy MV100000 issued to Avery Park at an annual premium of $654.30.", cp.FinalSummary)

	require.NotNil(t, cp.PolicyDraft)
	assert.Equal(t, models.StatusActive, cp.PolicyDraft.Status)

	assert.Contains(t, store.issued, "sess-1")
	assert.Equal(t, "POLICY WORDING (final)\nSection 1. Coverage.", archiver.documents["MV100000"])

	issued := publisher.byType(event.EventPolicyIssued)
	require.Len(t, issued, 1)
	assert.Equal(t, "MV100000", issued[0].PolicyNumber)
	assert.Equal(t, int64(100000), issued[0].QuoteNumber)

	// one checkpoint write per stage
	assert.Equal(t, len(engine.StageNames()), store.saves)
}

func TestExecuteEligibilityGate(t *testing.T) {
	gen := &scriptedGenerator{responses: happyPathResponses()}
	store := newMemorySessionStore()
	publisher := &recordingPublisher{}
	engine := newTestEngine(gen, store, publisher, nil)

	answers := eligibleAnswers()
	answers["uw2"] = "No"

	cp, err := engine.Execute(context.Background(), "sess-gate", &SessionInput{
		CustomerData: map[string]any{"name": "Jordan Lee"},
		Answers:      answers,
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusIneligible, cp.Status)
	assert.Equal(t, models.StageUnderwriting, cp.Stage)
	assert.Contains(t, cp.IneligibilityReason, "free of suspensions")
	require.NotNil(t, cp.Profile)
	assert.False(t, cp.Profile.Eligible)
	assert.Equal(t, cp.IneligibilityReason, cp.Profile.EligibilityReason)

	assert.Nil(t, cp.Issuance)
	assert.Empty(t, store.issued)
	assert.False(t, gen.sawMarker("Risk evaluation"))

	ineligible := publisher.byType(event.EventSessionIneligible)
	require.Len(t, ineligible, 1)
	assert.Contains(t, ineligible[0].Reason, "free of suspensions")

	// Ineligible is terminal: re-running the session changes nothing.
	again, err := engine.Execute(context.Background(), "sess-gate", &SessionInput{Answers: eligibleAnswers()})
	require.NoError(t, err)
	assert.Equal(t, models.StatusIneligible, again.Status)
	assert.Len(t, publisher.byType(event.EventSessionIneligible), 1)
}

func TestExecuteMissingMandatoryAnswerIsIneligible(t *testing.T) {
	gen := &scriptedGenerator{responses: happyPathResponses()}
	store := newMemorySessionStore()
	engine := newTestEngine(gen, store, &recordingPublisher{}, nil)

	answers := eligibleAnswers()
	delete(answers, "uw3")

	cp, err := engine.Execute(context.Background(), "sess-missing", &SessionInput{
		CustomerData: map[string]any{"name": "Sam Ortiz"},
		Answers:      answers,
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusIneligible, cp.Status)
	assert.Contains(t, cp.IneligibilityReason, "was not answered")
}

func TestExecuteOptionalQuestionNeverGates(t *testing.T) {
	gen := &scriptedGenerator{responses: happyPathResponses()}
	store := newMemorySessionStore()
	engine := newTestEngine(gen, store, &recordingPublisher{}, nil)

	answers := eligibleAnswers()
	delete(answers, "uw4")

	cp, err := engine.Execute(context.Background(), "sess-optional", &SessionInput{
		CustomerData: map[string]any{"name": "Avery Park"},
		Answers:      answers,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, cp.Status)
}

func TestExecuteResumesAfterLastCompletedStage(t *testing.T) {
	gen := &scriptedGenerator{responses: happyPathResponses()}
	store := newMemorySessionStore()
	engine := newTestEngine(gen, store, &recordingPublisher{}, nil)

	profile := &models.CustomerProfile{Name: "Avery Park", Eligible: true}
	seed := &models.WorkflowCheckpoint{
		SessionID:   "sess-resume",
		Profile:     profile,
		Stage:       models.StageCoverage,
		Status:      models.StatusDraft,
		Risk:        defaultRiskAssessment(),
		Coverage:    defaultCoverageModel(),
		PolicyDraft: &models.PolicyDraft{Status: models.StatusDraft, Profile: *profile},
	}
	require.NoError(t, store.SaveCheckpoint(context.Background(), seed))

	cp, err := engine.Execute(context.Background(), "sess-resume", &SessionInput{})
	require.NoError(t, err)

	assert.Equal(t, models.StatusActive, cp.Status)
	assert.Equal(t, models.StageSummary, cp.Stage)
	// the seeded artifacts survive untouched
	assert.Equal(t, 5.0, cp.Risk.RiskScore)

	assert.False(t, gen.sawMarker("Intake agent"))
	assert.False(t, gen.sawMarker("Risk evaluation"))
	assert.True(t, gen.sawMarker("Policy drafting"))
}

func TestExecuteTerminalSessionIsUntouched(t *testing.T) {
	gen := &scriptedGenerator{responses: happyPathResponses()}
	store := newMemorySessionStore()
	engine := newTestEngine(gen, store, &recordingPublisher{}, nil)

	seed := &models.WorkflowCheckpoint{
		SessionID: "sess-done",
		Stage:     models.StageMonitoring,
		Status:    models.StatusActive,
	}
	require.NoError(t, store.SaveCheckpoint(context.Background(), seed))
	savesBefore := store.saves

	cp, err := engine.Execute(context.Background(), "sess-done", &SessionInput{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, cp.Status)
	assert.Empty(t, gen.prompts)
	assert.Equal(t, savesBefore, store.saves)
}

func TestExecuteSubstitutesDefaultsWhenGenerationFails(t *testing.T) {
	store := newMemorySessionStore()
	engine := newTestEngine(failingGenerator{}, store, &recordingPublisher{}, nil)

	cp, err := engine.Execute(context.Background(), "sess-defaults", &SessionInput{
		CustomerData: map[string]any{"name": "Riley Chen", "dob": "1985-01-15"},
		Answers:      eligibleAnswers(),
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusActive, cp.Status)
	assert.Nil(t, cp.Failure)

	// intake fell back to the submitted data
	require.NotNil(t, cp.Profile)
	assert.Equal(t, "Riley Chen", cp.Profile.Name)

	require.NotNil(t, cp.Risk)
	assert.Equal(t, 5.0, cp.Risk.RiskScore)
	assert.Equal(t, []string{"Default risk assessment"}, cp.Risk.RiskFactors)

	require.NotNil(t, cp.Coverage)
	assert.Equal(t, []string{"Collision", "Liability", "Comprehensive"}, cp.Coverage.Coverages)
	assert.Equal(t, float64(100000), cp.Coverage.Limits["liability"])

	require.NotNil(t, cp.Pricing)
	assert.Equal(t, 825.50, cp.Pricing.FinalPremium)

	assert.Equal(t, "Standard policy language.", cp.PolicyDocument)
	assert.Contains(t, cp.QuoteDetails, "825.50")

	// review halves both default to passing
	require.NotNil(t, cp.InternalApproval)
	assert.True(t, cp.InternalApproval.Approved)
	require.NotNil(t, cp.Compliance)
	assert.True(t, cp.Compliance.Compliant)

	// the final report falls back to the policy snapshot
	assert.Contains(t, cp.FinalSummary, "Riley Chen")
	assert.Contains(t, cp.FinalSummary, "825.5")

	require.NotNil(t, cp.Issuance)
	assert.Equal(t, fmt.Sprintf("MV%d", cp.QuoteNumber), cp.Issuance.PolicyNumber)
	start, err := time.Parse("2006-01-02", cp.Issuance.StartDate)
	require.NoError(t, err)
	end, err := time.Parse("2006-01-02", cp.Issuance.EndDate)
	require.NoError(t, err)
	assert.Equal(t, start.AddDate(1, 0, 0), end)
}

func TestExecuteRecordsStageFailure(t *testing.T) {
	store := newMemorySessionStore()
	publisher := &recordingPublisher{}
	engine := newTestEngine(failingGenerator{}, store, publisher, nil)

	// no name anywhere: intake cannot produce a usable profile
	cp, err := engine.Execute(context.Background(), "sess-error", &SessionInput{
		CustomerData: map[string]any{"dob": "1985-01-15"},
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusError, cp.Status)
	require.NotNil(t, cp.Failure)
	assert.Equal(t, models.StageIntake, cp.Failure.Stage)
	assert.NotEmpty(t, cp.Failure.CorrelationID)
	assert.NotEmpty(t, cp.Failure.Message)

	failed := publisher.byType(event.EventStageFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, cp.Failure.CorrelationID, failed[0].CorrelationID)

	// Error is terminal: the session cannot be resumed
	again, err := engine.Execute(context.Background(), "sess-error", &SessionInput{
		CustomerData: map[string]any{"name": "Now Present"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, again.Status)
	assert.Nil(t, again.Profile)
}

func TestExecuteQuoteNumbersAdvancePerSession(t *testing.T) {
	gen := &scriptedGenerator{responses: happyPathResponses()}
	store := newMemorySessionStore()
	engine := newTestEngine(gen, store, &recordingPublisher{}, nil)

	input := func() *SessionInput {
		return &SessionInput{
			CustomerData: map[string]any{"name": "Avery Park"},
			Answers:      eligibleAnswers(),
		}
	}

	first, err := engine.Execute(context.Background(), "sess-a", input())
	require.NoError(t, err)
	second, err := engine.Execute(context.Background(), "sess-b", input())
	require.NoError(t, err)

	assert.Equal(t, int64(100000), first.QuoteNumber)
	assert.Equal(t, int64(100010), second.QuoteNumber)
	assert.Equal(t, "MV100010", second.Issuance.PolicyNumber)
}

func TestExecuteReviewBlocksIssuance(t *testing.T) {
	responses := happyPathResponses()
	responses["Internal approval"] = `{"approved": false, "reasons": "pricing outside authority"}`
	gen := &scriptedGenerator{responses: responses}
	store := newMemorySessionStore()
	publisher := &recordingPublisher{}
	engine := newTestEngine(gen, store, publisher, nil)

	cp, err := engine.Execute(context.Background(), "sess-review", &SessionInput{
		CustomerData: map[string]any{"name": "Avery Park"},
		Answers:      eligibleAnswers(),
	})
	require.NoError(t, err)

	// the session halts as a draft, nothing issues
	assert.Equal(t, models.StatusDraft, cp.Status)
	assert.Equal(t, models.StageReview, cp.Stage)
	assert.Nil(t, cp.Issuance)
	assert.Empty(t, store.issued)
	assert.False(t, gen.sawMarker("Issuance agent"))

	require.NotNil(t, cp.InternalApproval)
	assert.False(t, cp.InternalApproval.Approved)
	assert.Equal(t, "pricing outside authority", cp.InternalApproval.Reasons)
	require.NotNil(t, cp.Compliance)
	assert.True(t, cp.Compliance.Compliant)

	blocked := publisher.byType(event.EventReviewBlocked)
	require.Len(t, blocked, 1)
	assert.Contains(t, blocked[0].Reason, "pricing outside authority")
	assert.Empty(t, publisher.byType(event.EventPolicyIssued))
}

func TestExecuteResumeRepeatsFailedReview(t *testing.T) {
	responses := happyPathResponses()
	responses["Regulatory review"] = `{"compliance": false, "issues": "missing cancellation clause"}`
	gen := &scriptedGenerator{responses: responses}
	store := newMemorySessionStore()
	publisher := &recordingPublisher{}
	engine := newTestEngine(gen, store, publisher, nil)

	input := &SessionInput{
		CustomerData: map[string]any{"name": "Avery Park"},
		Answers:      eligibleAnswers(),
	}

	first, err := engine.Execute(context.Background(), "sess-reprise", input)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, first.Status)
	assert.Equal(t, models.StageReview, first.Stage)

	// the wording now passes: resuming re-runs the review and issues
	gen.responses["Regulatory review"] = `{"compliance": true, "issues": ""}`

	second, err := engine.Execute(context.Background(), "sess-reprise", input)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, second.Status)
	assert.Equal(t, models.StageSummary, second.Stage)
	require.NotNil(t, second.Compliance)
	assert.True(t, second.Compliance.Compliant)
	require.NotNil(t, second.Issuance)
	assert.Equal(t, "MV100000", second.Issuance.PolicyNumber)

	require.Len(t, publisher.byType(event.EventReviewBlocked), 1)
	require.Len(t, publisher.byType(event.EventPolicyIssued), 1)
}

func TestStageNamesOrder(t *testing.T) {
	engine := newTestEngine(failingGenerator{}, newMemorySessionStore(), nil, nil)
	assert.Equal(t, []models.StageName{
		models.StageIntake,
		models.StageProfile,
		models.StageUnderwriting,
		models.StageRisk,
		models.StageCoverage,
		models.StageDrafting,
		models.StagePricing,
		models.StageQuote,
		models.StageReview,
		models.StageIssuance,
		models.StageMonitoring,
		models.StageSummary,
	}, engine.StageNames())
}
