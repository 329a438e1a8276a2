package models

import "time"

// ============================================================================
// STAGE ARTIFACTS
// ============================================================================

type RiskAssessment struct {
	RiskScore   float64  `json:"riskScore"`
	RiskFactors []string `json:"riskFactors"`
}

type CoverageModel struct {
	Coverages   []string           `json:"coverages"`
	Limits      map[string]float64 `json:"limits"`
	Deductibles map[string]float64 `json:"deductibles"`
	Exclusions  []string           `json:"exclusions,omitempty"`
	AddOns      []string           `json:"addOns,omitempty"`
}

type Pricing struct {
	BasePremium  float64 `json:"basePremium"`
	FinalPremium float64 `json:"finalPremium"`
}

// InternalApproval is the underwriting desk's sign-off on the drafted
// policy and its pricing.
type InternalApproval struct {
	Approved bool   `json:"approved"`
	Reasons  string `json:"reasons,omitempty"`
}

// RegulatoryReview is the compliance check on the drafted policy
// wording.
type RegulatoryReview struct {
	Compliant bool   `json:"compliance"`
	Issues    string `json:"issues,omitempty"`
}

type Issuance struct {
	PolicyNumber string `json:"policyNumber"`
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
}

type Monitoring struct {
	MonitoringStatus string `json:"monitoringStatus"`
}

// PolicyDraft embeds the artifact snapshots gathered so far. The quote
// number is allocated once; the issued policy number reuses the same
// sequence with a different business prefix.
type PolicyDraft struct {
	QuoteID     string          `json:"id"`
	QuoteNumber int64           `json:"quoteNumber"`
	Status      PolicyStatus    `json:"status"`
	Profile     CustomerProfile `json:"customerProfile"`
	Risk        *RiskAssessment `json:"riskInfo,omitempty"`
	Coverage    *CoverageModel  `json:"coverage,omitempty"`
}

// ============================================================================
// WORKFLOW CHECKPOINT
// ============================================================================

// StageFailure is the recorded form of an unrecoverable stage error. It
// halts the owning session's advancement but never the process.
type StageFailure struct {
	CorrelationID string    `json:"correlationId"`
	Stage         StageName `json:"stage"`
	Message       string    `json:"message"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// WorkflowCheckpoint is the cumulative state snapshot written after every
// stage. It is upserted by session id, never deleted, so a later request
// carrying the same session id resumes from the last completed stage.
type WorkflowCheckpoint struct {
	SessionID           string            `json:"sessionId"`
	Profile             *CustomerProfile  `json:"customerProfile,omitempty"`
	Stage               StageName         `json:"stage"`
	LastUpdated         time.Time         `json:"lastUpdated"`
	Status              PolicyStatus      `json:"status"`
	Risk                *RiskAssessment   `json:"riskInfo,omitempty"`
	Coverage            *CoverageModel    `json:"coverage,omitempty"`
	PolicyDraft         *PolicyDraft      `json:"policyDraft,omitempty"`
	PolicyDocument      string            `json:"policyDocument,omitempty"`
	Pricing             *Pricing          `json:"pricing,omitempty"`
	QuoteDetails        string            `json:"quoteDetails,omitempty"`
	InternalApproval    *InternalApproval `json:"internalApproval,omitempty"`
	Compliance          *RegulatoryReview `json:"compliance,omitempty"`
	Issuance            *Issuance         `json:"issuance,omitempty"`
	FinalSummary        string            `json:"finalSummary,omitempty"`
	Monitoring          *Monitoring       `json:"monitoring,omitempty"`
	QuoteNumber         int64             `json:"quoteNumber,omitempty"`
	IneligibilityReason string            `json:"ineligibilityReason,omitempty"`
	Failure             *StageFailure     `json:"failure,omitempty"`
}

// ReviewPassed reports whether both halves of the compliance review
// signed off. A session halted by a failed review repeats the review
// when it resumes.
func (cp *WorkflowCheckpoint) ReviewPassed() bool {
	return cp.InternalApproval != nil && cp.InternalApproval.Approved &&
		cp.Compliance != nil && cp.Compliance.Compliant
}
