package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"underwriting-service/internal/ai/gemini"
	"underwriting-service/internal/event"
	"underwriting-service/internal/models"
)

// runIntake normalizes the submitted customer data into a profile. When
// generation fails the submitted data is taken at face value.
func (e *Engine) runIntake(ctx context.Context, cp *models.WorkflowCheckpoint, in *SessionInput) (Outcome, error) {
	profile := &models.CustomerProfile{}

	if obj, ok := e.generateStructured(ctx, e.gen, gemini.BuildIntakePrompt(mustJSON(in.CustomerData)), "name"); ok {
		if err := decodeInto(obj, profile); err != nil {
			slog.Warn("Intake response did not decode, using submitted data",
				"session_id", cp.SessionID, "error", err)
			profile = &models.CustomerProfile{}
		}
	}
	if profile.Name == "" {
		if err := decodeInto(in.CustomerData, profile); err != nil {
			return Continue, fmt.Errorf("failed to decode submitted customer data: %w", err)
		}
	}
	if profile.Name == "" {
		return Continue, fmt.Errorf("customer name missing from intake data")
	}

	cp.Profile = profile
	cp.Status = models.StatusInProgress
	return Continue, nil
}

// runProfile enriches the intake profile with vehicle and driving
// history detail. Fields absent from the response keep their intake
// values.
func (e *Engine) runProfile(ctx context.Context, cp *models.WorkflowCheckpoint, in *SessionInput) (Outcome, error) {
	if cp.Profile == nil {
		return Continue, fmt.Errorf("profile stage requires an intake profile")
	}

	prompt := gemini.BuildProfilePrompt(mustJSON(cp.Profile), mustJSON(in.CustomerData))
	obj, ok := e.generateStructured(ctx, e.gen, prompt, "vehicle_details")
	if !ok {
		slog.Warn("Profile enrichment failed, keeping intake profile", "session_id", cp.SessionID)
		if err := decodeInto(in.CustomerData, cp.Profile); err != nil {
			slog.Warn("Submitted data did not decode onto profile",
				"session_id", cp.SessionID, "error", err)
		}
		return Continue, nil
	}
	if err := decodeInto(obj, cp.Profile); err != nil {
		return Continue, fmt.Errorf("failed to decode enriched profile: %w", err)
	}
	return Continue, nil
}

// runUnderwriting is the eligibility gate. Every mandatory question must
// carry the affirmative answer; the first mandatory question answered
// negatively, or not answered at all, halts the session as Ineligible
// with a reason naming the question.
func (e *Engine) runUnderwriting(ctx context.Context, cp *models.WorkflowCheckpoint, in *SessionInput) (Outcome, error) {
	if cp.Profile == nil {
		return Continue, fmt.Errorf("underwriting stage requires a profile")
	}

	answers := make(map[string]string, len(in.Answers))
	for id, a := range in.Answers {
		answers[id] = strings.TrimSpace(a)
	}
	cp.Profile.UnderwritingAnswers = answers

	for _, q := range e.questions.Questions(ctx) {
		answer := answers[q.ID]
		if !q.Mandatory {
			continue
		}
		var reason string
		switch {
		case answer == "":
			reason = fmt.Sprintf("mandatory underwriting question %q was not answered", q.Text)
		case strings.EqualFold(answer, string(models.AnswerNo)):
			reason = fmt.Sprintf("mandatory underwriting question %q was answered %q", q.Text, answer)
		default:
			continue
		}

		cp.Profile.Eligible = false
		cp.Profile.EligibilityReason = reason
		cp.IneligibilityReason = reason
		cp.Status = models.StatusIneligible
		slog.Info("Session failed eligibility gate",
			"session_id", cp.SessionID, "question_id", q.ID, "reason", reason)
		return Halt, nil
	}

	cp.Profile.Eligible = true
	cp.Profile.EligibilityReason = ""
	return Continue, nil
}

// runRisk scores the profile. Extraction failure substitutes the stock
// assessment so the pipeline keeps moving.
func (e *Engine) runRisk(ctx context.Context, cp *models.WorkflowCheckpoint, _ *SessionInput) (Outcome, error) {
	risk := defaultRiskAssessment()
	if obj, ok := e.generateStructured(ctx, e.gen, gemini.BuildRiskPrompt(mustJSON(cp.Profile)), "riskScore"); ok {
		if err := decodeInto(obj, risk); err != nil {
			slog.Warn("Risk response did not decode, using default assessment",
				"session_id", cp.SessionID, "error", err)
			risk = defaultRiskAssessment()
		}
	}
	cp.Risk = risk
	return Continue, nil
}

// runCoverage designs the coverage set and opens the policy draft. From
// here on the checkpoint carries Draft status until issuance.
func (e *Engine) runCoverage(ctx context.Context, cp *models.WorkflowCheckpoint, _ *SessionInput) (Outcome, error) {
	coverage := defaultCoverageModel()
	params := mustJSON(map[string]any{"customerProfile": cp.Profile, "riskInfo": cp.Risk})
	if obj, ok := e.generateStructured(ctx, e.gen, gemini.BuildCoveragePrompt(params), "coverages"); ok {
		if err := decodeInto(obj, coverage); err != nil {
			slog.Warn("Coverage response did not decode, using default model",
				"session_id", cp.SessionID, "error", err)
			coverage = defaultCoverageModel()
		}
	}
	cp.Coverage = coverage
	cp.PolicyDraft = &models.PolicyDraft{
		QuoteNumber: cp.QuoteNumber,
		Status:      models.StatusDraft,
		Profile:     *cp.Profile,
		Risk:        cp.Risk,
		Coverage:    cp.Coverage,
	}
	cp.Status = models.StatusDraft
	return Continue, nil
}

// runDrafting produces the policy wording in two passes: a first draft
// from the coverage model, then a language polish over that draft.
func (e *Engine) runDrafting(ctx context.Context, cp *models.WorkflowCheckpoint, _ *SessionInput) (Outcome, error) {
	params := mustJSON(map[string]any{"customerProfile": cp.Profile, "coverage": cp.Coverage})

	document := defaultPolicyDocument
	if draft, ok := e.generateFreeText(ctx, e.docGen, gemini.BuildDraftPrompt(params)); ok {
		document = draft
		if polished, ok := e.generateFreeText(ctx, e.docGen, gemini.BuildPolishPrompt(draft)); ok {
			document = polished
		} else {
			slog.Warn("Polish pass failed, keeping unpolished draft", "session_id", cp.SessionID)
		}
	} else {
		slog.Warn("Policy drafting failed, using standard wording", "session_id", cp.SessionID)
	}

	cp.PolicyDocument = document
	return Continue, nil
}

// runPricing computes premiums from the risk score and coverage model.
func (e *Engine) runPricing(ctx context.Context, cp *models.WorkflowCheckpoint, _ *SessionInput) (Outcome, error) {
	pricing := defaultPricing()
	params := mustJSON(map[string]any{"riskInfo": cp.Risk, "coverage": cp.Coverage})
	if obj, ok := e.generateStructured(ctx, e.gen, gemini.BuildPricingPrompt(params), "finalPremium"); ok {
		if err := decodeInto(obj, pricing); err != nil {
			slog.Warn("Pricing response did not decode, using default pricing",
				"session_id", cp.SessionID, "error", err)
			pricing = defaultPricing()
		}
	}
	cp.Pricing = pricing
	return Continue, nil
}

// runQuote renders the customer-facing quote text.
func (e *Engine) runQuote(ctx context.Context, cp *models.WorkflowCheckpoint, _ *SessionInput) (Outcome, error) {
	params := mustJSON(map[string]any{
		"customerProfile": cp.Profile,
		"coverage":        cp.Coverage,
		"pricing":         cp.Pricing,
		"quoteNumber":     cp.QuoteNumber,
	})
	quote := defaultQuoteText(cp.Pricing)
	if text, ok := e.generateFreeText(ctx, e.docGen, gemini.BuildQuotePrompt(params)); ok {
		quote = text
	} else {
		slog.Warn("Quote rendering failed, using standard quote text", "session_id", cp.SessionID)
	}
	cp.QuoteDetails = quote
	return Continue, nil
}

// runReview is the two-part sign-off before issuance: internal approval
// of the draft and its pricing, then a regulatory review of the wording.
// Either half rejecting halts the session with the outcome recorded and
// the checkpoint still in Draft, so resuming the session repeats the
// review rather than skipping past it.
func (e *Engine) runReview(ctx context.Context, cp *models.WorkflowCheckpoint, _ *SessionInput) (Outcome, error) {
	approval := defaultInternalApproval()
	approvalParams := mustJSON(map[string]any{"document": cp.PolicyDocument, "pricing": cp.Pricing})
	if obj, ok := e.generateStructured(ctx, e.gen, gemini.BuildApprovalPrompt(approvalParams), "approved"); ok {
		if err := decodeInto(obj, approval); err != nil {
			slog.Warn("Approval response did not decode, treating as approved",
				"session_id", cp.SessionID, "error", err)
			approval = defaultInternalApproval()
		}
	}

	review := defaultRegulatoryReview()
	complianceParams := mustJSON(map[string]any{"document": cp.PolicyDocument})
	if obj, ok := e.generateStructured(ctx, e.gen, gemini.BuildCompliancePrompt(complianceParams), "compliance"); ok {
		if err := decodeInto(obj, review); err != nil {
			slog.Warn("Compliance response did not decode, treating as compliant",
				"session_id", cp.SessionID, "error", err)
			review = defaultRegulatoryReview()
		}
	}

	cp.InternalApproval = approval
	cp.Compliance = review

	if !cp.ReviewPassed() {
		reason := reviewBlockReason(approval, review)
		slog.Warn("Review blocked issuance",
			"session_id", cp.SessionID, "approved", approval.Approved,
			"compliant", review.Compliant, "reason", reason)
		e.publish(ctx, event.PolicyLifecycleEvent{
			EventType:   event.EventReviewBlocked,
			SessionID:   cp.SessionID,
			QuoteNumber: cp.QuoteNumber,
			Stage:       string(models.StageReview),
			Reason:      reason,
			OccurredAt:  time.Now().UTC(),
		})
		return Halt, nil
	}
	return Continue, nil
}

func reviewBlockReason(approval *models.InternalApproval, review *models.RegulatoryReview) string {
	var parts []string
	if !approval.Approved {
		part := "internal approval rejected the draft"
		if approval.Reasons != "" {
			part = fmt.Sprintf("%s: %s", part, approval.Reasons)
		}
		parts = append(parts, part)
	}
	if !review.Compliant {
		part := "regulatory review found the wording non-compliant"
		if review.Issues != "" {
			part = fmt.Sprintf("%s: %s", part, review.Issues)
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, "; ")
}

// runIssuance activates the policy. The policy number is derived from
// the session's quote number, never generated: whatever the response
// claims, the derived number wins. The issued record and the archived
// wording are written here, and the lifecycle event goes out last.
func (e *Engine) runIssuance(ctx context.Context, cp *models.WorkflowCheckpoint, _ *SessionInput) (Outcome, error) {
	if cp.QuoteNumber == 0 {
		return Continue, fmt.Errorf("no quote number allocated for session")
	}
	policyNumber := fmt.Sprintf("%s%d", e.cfg.PolicyPrefix, cp.QuoteNumber)

	now := time.Now().UTC()
	issuance := defaultIssuance(policyNumber, now)
	params := mustJSON(map[string]any{"customerProfile": cp.Profile, "pricing": cp.Pricing})
	if obj, ok := e.generateStructured(ctx, e.gen, gemini.BuildIssuancePrompt(policyNumber, params), "startDate", "endDate"); ok {
		if err := decodeInto(obj, issuance); err != nil {
			slog.Warn("Issuance response did not decode, using default term",
				"session_id", cp.SessionID, "error", err)
			issuance = defaultIssuance(policyNumber, now)
		}
	}
	issuance.PolicyNumber = policyNumber

	cp.Issuance = issuance
	cp.Status = models.StatusActive
	if cp.PolicyDraft != nil {
		cp.PolicyDraft.Status = models.StatusActive
	}

	if e.archiver != nil && cp.PolicyDocument != "" {
		if location, err := e.archiver.ArchivePolicyDocument(ctx, policyNumber, cp.PolicyDocument); err != nil {
			slog.Warn("Failed to archive policy document",
				"session_id", cp.SessionID, "policy_number", policyNumber, "error", err)
		} else {
			slog.Info("Archived policy document",
				"session_id", cp.SessionID, "policy_number", policyNumber, "location", location)
		}
	}

	if err := e.store.SaveIssuedPolicy(ctx, cp); err != nil {
		slog.Warn("Failed to record issued policy",
			"session_id", cp.SessionID, "policy_number", policyNumber, "error", err)
	}

	e.publish(ctx, event.PolicyLifecycleEvent{
		EventType:    event.EventPolicyIssued,
		SessionID:    cp.SessionID,
		QuoteNumber:  cp.QuoteNumber,
		PolicyNumber: policyNumber,
		Stage:        string(models.StageIssuance),
		OccurredAt:   now,
	})
	return Continue, nil
}

// runMonitoring records the post-issuance monitoring status.
func (e *Engine) runMonitoring(ctx context.Context, cp *models.WorkflowCheckpoint, _ *SessionInput) (Outcome, error) {
	monitoring := defaultMonitoring()
	params := mustJSON(map[string]any{"issuance": cp.Issuance})
	if obj, ok := e.generateStructured(ctx, e.gen, gemini.BuildMonitoringPrompt(params), "monitoringStatus"); ok {
		if err := decodeInto(obj, monitoring); err != nil {
			slog.Warn("Monitoring response did not decode, using default status",
				"session_id", cp.SessionID, "error", err)
			monitoring = defaultMonitoring()
		}
	}
	cp.Monitoring = monitoring
	return Continue, nil
}

// runSummary closes the pipeline with a narrative report over the
// session's complete output. When rendering fails the report falls back
// to a JSON snapshot of the same material.
func (e *Engine) runSummary(ctx context.Context, cp *models.WorkflowCheckpoint, _ *SessionInput) (Outcome, error) {
	finalPolicy := mustJSON(map[string]any{
		"customerProfile": cp.Profile,
		"riskInfo":        cp.Risk,
		"coverage":        cp.Coverage,
		"policyDocument":  cp.PolicyDocument,
		"pricing":         cp.Pricing,
		"quoteDetails":    cp.QuoteDetails,
		"issuance":        cp.Issuance,
		"monitoring":      cp.Monitoring,
	})

	summary := finalPolicy
	if text, ok := e.generateFreeText(ctx, e.docGen, gemini.BuildSummaryPrompt(finalPolicy)); ok {
		summary = text
	} else {
		slog.Warn("Final report rendering failed, storing policy snapshot", "session_id", cp.SessionID)
	}
	cp.FinalSummary = summary
	return Continue, nil
}
