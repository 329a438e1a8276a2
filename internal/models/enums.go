package models

type PolicyStatus string

const (
	StatusInProgress PolicyStatus = "InProgress"
	StatusDraft      PolicyStatus = "Draft"
	StatusIneligible PolicyStatus = "Ineligible"
	StatusActive     PolicyStatus = "Active"
	StatusError      PolicyStatus = "Error"
)

// IsTerminal reports whether no further stage may run for a session.
func (s PolicyStatus) IsTerminal() bool {
	return s == StatusActive || s == StatusIneligible || s == StatusError
}

type StageName string

const (
	StageIntake       StageName = "intake"
	StageProfile      StageName = "profile"
	StageUnderwriting StageName = "underwriting"
	StageRisk         StageName = "risk_assessment"
	StageCoverage     StageName = "coverage_design"
	StageDrafting     StageName = "policy_drafting"
	StagePricing      StageName = "pricing"
	StageQuote        StageName = "quote_generation"
	StageReview       StageName = "compliance_review"
	StageIssuance     StageName = "issuance"
	StageMonitoring   StageName = "monitoring"
	StageSummary      StageName = "final_report"
)

type AnswerOption string

const (
	AnswerYes AnswerOption = "Yes"
	AnswerNo  AnswerOption = "No"
)
