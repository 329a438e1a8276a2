package gemini

import "fmt"

// Stage prompts. Each prompt opens with a role tag so the same model can
// play the distinct personas of the underwriting pipeline. Every prompt
// that feeds a downstream stage demands JSON explicitly; the replies are
// still treated as unstructured text and recovered by the extractor.

const IntakePromptTemplate = `ROLE: Intake agent for a motor insurance underwriting workflow.

Collect ONLY the following basic customer information:
- Name
- Date of birth
- Address
- Contact information (phone, email)

DO NOT collect vehicle details or driving history at this stage.
If provided in the data below, extract ONLY the basic customer info listed above.

IMPORTANT: Return your response as a valid JSON object with fields
"name", "dob", "address" and "contact" {"phone", "email"}. No markdown,
no commentary.

Customer Data Provided: %s`

const ProfilePromptTemplate = `ROLE: Profiling agent for a motor insurance underwriting workflow.

Now collect detailed vehicle and driving information:
- Vehicle details (Make, Model, Year, VIN)
- Driving history (violations, accidents, years licensed)
- Coverage preferences

Add this information to the basic customer profile already collected and
return the COMPLETE customer profile as a single JSON object with fields
"name", "dob", "address", "contact", "vehicle_details" {"make", "model",
"year", "vin"}, "driving_history" {"violations", "accidents",
"years_licensed"} and "coverage_preferences" (array of strings).

Basic Profile: %s
Additional Data: %s`

const RiskPromptTemplate = `ROLE: Risk evaluation agent. Analyze risk factors (vehicle, driving
history, etc.) and produce a risk score.

Return a JSON object: {"riskScore": <number 1-10>, "riskFactors":
["list", "of", "factors"]}.

Call: assess_risk; Params: %s`

const CoveragePromptTemplate = `ROLE: Coverage modeling agent in the insurance policy workflow.

Your job is to:
1. Design tailored insurance coverages based on customer profile and risk assessment
2. Determine appropriate coverage limits based on vehicle value and risk factors
3. Set optimal deductibles that balance customer preferences with risk exposure
4. Identify necessary exclusions based on risk analysis
5. Recommend add-on coverages that benefit the customer's specific situation

Always return your response in clean JSON format with the following structure:
{
    "coverages": ["list", "of", "coverages"],
    "limits": {"coverage_type": amount},
    "deductibles": {"coverage_type": amount},
    "exclusions": ["list", "of", "exclusions"],
    "addOns": ["list", "of", "recommended", "add-ons"]
}

Call: design_coverage; Params: %s`

const DraftPromptTemplate = `ROLE: Policy drafting agent. Produce the full policy wording for the
coverage model below. Plain text, no JSON.

Call: draft_policy; Params: %s`

const PolishPromptTemplate = `ROLE: Document editing agent. Polish the draft policy wording below for
clarity and consistency without changing any coverage term, limit or
deductible. Plain text, no JSON.

Call: polish_document; Params: %s`

const PricingPromptTemplate = `ROLE: Pricing agent. Calculate premium pricing from the coverage model
and customer profile below.

Return a JSON object: {"basePremium": <number>, "finalPremium": <number>}.

Call: calculate_pricing; Params: %s`

const QuotePromptTemplate = `ROLE: Quotation agent. Generate a short formal quote text a customer
can read, from the pricing below. Plain text, no JSON.

Call: generate_quote; Params: %s`

const ApprovalPromptTemplate = `ROLE: Internal approval agent. Conduct an internal review of the
finalized policy draft and its pricing below and approve or reject it.

Return a JSON object: {"approved": <true|false>, "reasons": "<reasons
when rejecting, empty otherwise>"}.

Call: internal_approval; Params: %s`

const CompliancePromptTemplate = `ROLE: Regulatory review agent. Ensure the policy wording below complies
with all regulatory requirements.

Return a JSON object: {"compliance": <true|false>, "issues": "<issues
when non-compliant, empty otherwise>"}.

Call: regulatory_review; Params: %s`

const IssuancePromptTemplate = `ROLE: Issuance agent. Issue the policy described below.

Return a JSON object: {"policyNumber": "%s", "startDate": "YYYY-MM-DD",
"endDate": "YYYY-MM-DD"} using today as the start date and a one-year
term. The policyNumber MUST be exactly the value given.

Call: issue_policy; Params: %s`

const MonitoringPromptTemplate = `ROLE: Monitoring agent. Set up renewal and mid-term-adjustment
monitoring for the issued policy below.

Return a JSON object: {"monitoringStatus": "Active"}.

Call: monitor_policy; Params: %s`

const SummaryPromptTemplate = `ROLE: Coordinating agent. Produce the final policy summary a reviewer
can read, covering the customer, coverage, pricing and issuance details
below. Plain text, no JSON.

Call: summarize_policy; Params: %s`

func BuildIntakePrompt(customerData string) string {
	return fmt.Sprintf(IntakePromptTemplate, customerData)
}

func BuildProfilePrompt(basicProfile, additionalData string) string {
	return fmt.Sprintf(ProfilePromptTemplate, basicProfile, additionalData)
}

func BuildRiskPrompt(params string) string {
	return fmt.Sprintf(RiskPromptTemplate, params)
}

func BuildCoveragePrompt(params string) string {
	return fmt.Sprintf(CoveragePromptTemplate, params)
}

func BuildDraftPrompt(params string) string {
	return fmt.Sprintf(DraftPromptTemplate, params)
}

func BuildPolishPrompt(draft string) string {
	return fmt.Sprintf(PolishPromptTemplate, draft)
}

func BuildPricingPrompt(params string) string {
	return fmt.Sprintf(PricingPromptTemplate, params)
}

func BuildQuotePrompt(params string) string {
	return fmt.Sprintf(QuotePromptTemplate, params)
}

func BuildApprovalPrompt(params string) string {
	return fmt.Sprintf(ApprovalPromptTemplate, params)
}

func BuildCompliancePrompt(params string) string {
	return fmt.Sprintf(CompliancePromptTemplate, params)
}

func BuildIssuancePrompt(policyNumber, params string) string {
	return fmt.Sprintf(IssuancePromptTemplate, policyNumber, params)
}

func BuildMonitoringPrompt(params string) string {
	return fmt.Sprintf(MonitoringPromptTemplate, params)
}

func BuildSummaryPrompt(params string) string {
	return fmt.Sprintf(SummaryPromptTemplate, params)
}
