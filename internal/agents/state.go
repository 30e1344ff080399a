package agents

import (
	"fmt"

	"github.com/valyala/bytebufferpool"

	"github.com/discharge-coordinator/internal/patient"
)

// stateVariant coordinates insurance authorization and state program
// eligibility for discharge services.
func stateVariant() variant {
	return variant{
		buildPrompt: buildStatePrompt,
		fallback:    stateFallback,
		buildForm:   buildStateForm,
	}
}

func buildStatePrompt(c *patient.PatientCase, in *patient.CaregiverInput) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	fmt.Fprintf(buf, `You are a STATE/INSURANCE coordination agent for hospital discharge planning.

SCOPE: ONLY insurance authorization and state program coordination for discharge. NO inpatient billing.

Patient Discharge Profile:
- Patient: %s (ID: %s)
- Primary Diagnosis: %s
- Secondary Diagnoses: %s
- MRN: %s

INSURANCE & AUTHORIZATION:
- Coverage Status: %s
- Follow-up Date: %s

PRESCRIBER INFORMATION:
- Prescriber: %s
- NPI: %s

DISCHARGE PLANNING CONCERN: %s

FOCUS AREAS (authorization and state programs):
1. Prior authorization/pre-certification for home services
2. Medicaid waiver applications for home care
3. Insurance coverage verification for DME and home health
4. State program eligibility assessment
5. Appeals and authorization follow-up

EXCLUDE: Inpatient billing, hospital insurance verification, DRG coding

IMPORTANT: Respond ONLY with a valid JSON object for STATE/INSURANCE COORDINATION:
{
    "structured_data": {
        "prior_auth_required": true,
        "medicaid_waiver_eligible": false,
        "insurance_coverage_verified": false,
        "state_program_referral_needed": true,
        "authorization_timeline": "3-5 business days",
        "appeals_process_available": true
    },
    "recommendations": [
        "Submit prior authorization for home health services",
        "Verify insurance coverage for prescribed DME equipment",
        "Assess eligibility for state Medicaid waiver programs"
    ],
    "next_steps": [
        "Complete prior authorization forms with physician NPI and diagnosis codes",
        "Contact insurance benefits department for coverage verification",
        "Submit state program applications if eligible"
    ],
    "external_referrals": ["Insurance Prior Authorization", "State Medicaid Office", "Benefits Verification"]
}

Focus ONLY on discharge-related insurance and state program coordination.`,
		c.Name, c.PatientID,
		patient.OrNotSpecified(c.PrimaryDiagnosis),
		patient.OrDefault(c.SecondaryDiagnoses, "None"),
		patient.OrDefault(c.MRN, "Not available"),
		patient.OrDefault(c.InsuranceCoverageStatus, "Unknown"),
		patient.OrDefault(c.FollowUpDate, "Not scheduled"),
		patient.OrNotSpecified(c.PrescriberName),
		patient.OrDefault(c.NPINumber, "Not available"),
		in.PrimaryConcern)

	return buf.String()
}

func stateFallback(c *patient.PatientCase) payload {
	return payload{
		structured: map[string]interface{}{
			"prior_auth_required":         true,
			"insurance_coverage_verified": false,
			"authorization_timeline":      "3-5 business days",
		},
		recommendations: []string{
			"Verify insurance coverage for discharge services",
			"Submit required prior authorization forms",
		},
		nextSteps: []string{
			"Contact insurance benefits department",
			"Complete authorization paperwork",
		},
		externalReferrals: []string{"Insurance Authorization"},
	}
}

func buildStateForm(c *patient.PatientCase) *HandoffForm {
	services := fmt.Sprintf("Home Health: %s\nDME: %s",
		patient.OrDefault(c.SkilledNursingNeeded, "No"),
		patient.OrDefault(c.EquipmentNeeded, "None"))

	return &HandoffForm{
		FormID: "state_" + c.PatientID,
		Title:  "Insurance Authorization & State Programs Form",
		Fields: []FormField{
			{Name: "patient_name", Type: "text", Label: "Patient Name", Value: c.Name, Required: true},
			{Name: "mrn", Type: "text", Label: "Medical Record Number",
				Value: patient.OrDefault(c.MRN, "Not available")},
			{Name: "primary_diagnosis", Type: "text", Label: "Primary Diagnosis",
				Value: patient.OrNotSpecified(c.PrimaryDiagnosis)},
			{Name: "prescriber_npi", Type: "text", Label: "Prescriber NPI",
				Value: patient.OrDefault(c.NPINumber, "Not available")},
			{Name: "insurance_status", Type: "select", Label: "Insurance Coverage Status",
				Value:   patient.OrDefault(c.InsuranceCoverageStatus, "pending"),
				Options: []string{"active", "pending", "denied", "expired", "unknown"}},
			{Name: "services_requested", Type: "textarea", Label: "Services Requiring Authorization",
				Value: services},
			{Name: "authorization_urgency", Type: "select", Label: "Authorization Urgency",
				Value:   "standard",
				Options: []string{"urgent", "standard", "routine"}},
		},
		Recipient: "Insurance Authorization Department",
	}
}
