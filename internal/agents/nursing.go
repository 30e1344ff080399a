package agents

import (
	"fmt"
	"strings"

	"github.com/valyala/bytebufferpool"

	"github.com/discharge-coordinator/internal/patient"
)

// nursingVariant coordinates the home health nursing hand-off: skilled
// nursing referral, plan-of-care setup, and caregiver education scheduling.
func nursingVariant() variant {
	return variant{
		buildPrompt: buildNursingPrompt,
		fallback:    nursingFallback,
		buildForm:   buildNursingForm,
	}
}

func buildNursingPrompt(c *patient.PatientCase, in *patient.CaregiverInput) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	fmt.Fprintf(buf, `You are a HOME HEALTH NURSING coordination agent for hospital discharge planning.

SCOPE: ONLY hospital-to-home transition nursing needs. NO inpatient management.

Patient Discharge Profile:
- Patient: %s (ID: %s)
- Primary Diagnosis: %s
- Secondary Diagnoses: %s
- Discharge Date: %s
- Allergies: %s

HOME NURSING REQUIREMENTS:
- Skilled Nursing Needed: %s
- Visit Frequency: %s
- Care Type: %s
- Emergency Procedures: %s

MEDICATION TRANSITION:
- Current Medication: %s
- Route: %s
- Vascular Access: %s

DISCHARGE PLANNING CONCERN: %s

FOCUS AREAS (0-14 days post-discharge):
1. Home health nursing referrals (485/plan of care)
2. Wound care protocols for home setting
3. Vital signs monitoring schedule
4. Caregiver education and training
5. Follow-up appointment coordination

EXCLUDE: Inpatient procedures, hospital medication titration, ICU workflows

IMPORTANT: Respond ONLY with a valid JSON object for HOME HEALTH TRANSITION:
{
    "structured_data": {
        "home_health_referral": true,
        "visit_frequency": "weekly",
        "care_plan_485_required": true,
        "wound_care_protocol": false,
        "vital_signs_monitoring": true,
        "caregiver_education_needed": true,
        "first_visit_target": "within 24 hours of discharge"
    },
    "recommendations": [
        "Initiate home health nursing referral with 485 plan of care",
        "Schedule first nursing visit within 24 hours of discharge",
        "Provide caregiver education on medication administration"
    ],
    "next_steps": [
        "Contact home health agency for intake",
        "Schedule first nursing visit",
        "Prepare discharge education materials"
    ],
    "external_referrals": [
        "Home Health Agency - for skilled nursing visits",
        "Primary Care Provider - for follow-up coordination"
    ]
}`,
		c.Name, c.PatientID,
		patient.OrNotSpecified(c.PrimaryDiagnosis),
		patient.OrDefault(c.SecondaryDiagnoses, "None"),
		patient.OrNotSpecified(c.DischargeDate),
		patient.OrDefault(c.Allergies, "None"),
		patient.OrNotSpecified(c.SkilledNursingNeeded),
		patient.OrNotSpecified(c.NursingVisitFrequency),
		patient.OrNotSpecified(c.TypeOfNursingCare),
		patient.OrDefault(c.EmergencyContactProcedure, "None specified"),
		patient.OrDefault(c.Medication, "None"),
		patient.OrNotSpecified(c.Route),
		patient.OrDefault(c.VascularAccess, "None"),
		in.PrimaryConcern)

	return buf.String()
}

func nursingFallback(c *patient.PatientCase) payload {
	return payload{
		structured: map[string]interface{}{
			"home_health_referral":       true,
			"visit_frequency":            "weekly",
			"care_plan_485_required":     true,
			"wound_care_protocol":        strings.Contains(strings.ToLower(c.SkilledNursingNeeded), "wound"),
			"vital_signs_monitoring":     true,
			"caregiver_education_needed": true,
			"first_visit_target":         "within 24 hours of discharge",
		},
		recommendations: []string{
			"Initiate home health nursing referral with 485 plan of care",
			"Schedule first nursing visit within 24 hours of discharge",
			"Provide caregiver education on care procedures",
			"Coordinate with primary care provider for follow-up",
		},
		nextSteps: []string{
			"Contact home health agency for intake assessment",
			"Schedule first nursing visit",
			"Prepare discharge education materials",
			"Verify insurance authorization for home health services",
		},
		externalReferrals: []string{
			"Home Health Agency - for skilled nursing visits",
			"Primary Care Provider - for follow-up coordination",
		},
	}
}

func buildNursingForm(c *patient.PatientCase) *HandoffForm {
	return &HandoffForm{
		FormID: "nursing_" + c.PatientID,
		Title:  "Nursing Care Coordination Form",
		Fields: []FormField{
			{Name: "patient_name", Type: "text", Label: "Patient Name", Value: c.Name, Required: true},
			{Name: "primary_diagnosis", Type: "text", Label: "Primary Diagnosis",
				Value: patient.OrNotSpecified(c.PrimaryDiagnosis)},
			{Name: "care_frequency", Type: "select", Label: "Visit Frequency",
				Value:   patient.OrDefault(c.NursingVisitFrequency, "weekly"),
				Options: []string{"daily", "weekly", "bi-weekly", "monthly"}},
			{Name: "care_type", Type: "textarea", Label: "Type of Care Needed",
				Value: patient.OrNotSpecified(c.TypeOfNursingCare)},
			{Name: "special_instructions", Type: "textarea", Label: "Special Instructions",
				Value: patient.OrDefault(c.SpecialInstructions, "None")},
		},
		Recipient: patient.OrDefault(c.NurseAgency, "Home Health Agency"),
	}
}
