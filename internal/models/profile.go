package models

// ============================================================================
// CUSTOMER PROFILE
// ============================================================================

type ContactInfo struct {
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type VehicleDetails struct {
	Make  string `json:"make"`
	Model string `json:"model"`
	Year  string `json:"year"`
	VIN   string `json:"vin"`
}

type DrivingHistory struct {
	Violations    string `json:"violations"`
	Accidents     string `json:"accidents"`
	YearsLicensed string `json:"years_licensed"`
}

// CustomerProfile is built up by the intake and profile stages and becomes
// read-only input once eligibility has been decided.
type CustomerProfile struct {
	Name                string            `json:"name"`
	DOB                 string            `json:"dob"`
	Address             string            `json:"address"`
	Contact             ContactInfo       `json:"contact"`
	Vehicle             VehicleDetails    `json:"vehicle_details"`
	DrivingHistory      DrivingHistory    `json:"driving_history"`
	CoveragePreferences []string          `json:"coverage_preferences,omitempty"`
	UnderwritingAnswers map[string]string `json:"underwritingAnswers,omitempty"`
	Eligible            bool              `json:"eligible"`
	EligibilityReason   string            `json:"eligibilityReason,omitempty"`
}

// UnderwritingQuestion is a single yes/no intake question. Mandatory
// questions answered with the negative option trip the eligibility gate.
type UnderwritingQuestion struct {
	ID          string         `json:"id"`
	Text        string         `json:"text"`
	Mandatory   bool           `json:"mandatory"`
	Explanation string         `json:"explanation,omitempty"`
	Answers     []AnswerOption `json:"answers"`
}
