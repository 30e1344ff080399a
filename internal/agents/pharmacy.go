package agents

import (
	"fmt"
	"strings"

	"github.com/valyala/bytebufferpool"

	"github.com/discharge-coordinator/internal/patient"
)

// pharmacyVariant coordinates the medication hand-off: reconciliation, eRx
// transfer to a community pharmacy, and route transition where applicable.
func pharmacyVariant() variant {
	return variant{
		buildPrompt: buildPharmacyPrompt,
		fallback:    pharmacyFallback,
		buildForm:   buildPharmacyForm,
	}
}

func buildPharmacyPrompt(c *patient.PatientCase, in *patient.CaregiverInput) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	fmt.Fprintf(buf, `You are a PHARMACY TRANSITION coordination agent for hospital discharge planning.

SCOPE: ONLY medication reconciliation and eRx handoff for discharge. NO inpatient medication management.

Patient Discharge Profile:
- Patient: %s (ID: %s)
- Primary Diagnosis: %s
- Secondary Diagnoses: %s
- Allergies: %s

MEDICATION TRANSITION:
- Current Hospital Medication: %s
- Dosage: %s
- Frequency: %s
- Route: %s
- Duration: %s
- Vascular Access: %s

PRESCRIBER INFORMATION:
- Prescriber: %s
- NPI: %s
- Contact: %s

DISCHARGE PLANNING CONCERN: %s

FOCUS AREAS (medication transition only):
1. Medication list confirmation and reconciliation
2. eRx handoff to community pharmacy
3. Route transition (IV to oral if applicable)
4. Prescription pickup/delivery coordination
5. Insurance coverage verification for discharge medications

EXCLUDE: Inpatient medication titration, hospital formulary changes, ICU drug protocols

IMPORTANT: Respond ONLY with a valid JSON object for MEDICATION TRANSITION:
{
    "structured_data": {
        "medication_reconciliation_needed": true,
        "erx_handoff_required": true,
        "route_transition": "iv_to_oral",
        "insurance_coverage_verified": false,
        "pickup_delivery_arranged": false,
        "allergy_alerts_documented": true,
        "duration_confirmed": true
    },
    "recommendations": [
        "Complete medication reconciliation with discharge medications",
        "Coordinate eRx handoff to patient's preferred community pharmacy",
        "Verify insurance coverage for all discharge medications"
    ],
    "next_steps": [
        "Contact community pharmacy for medication availability",
        "Arrange prescription pickup or delivery coordination",
        "Provide patient education on new medication regimen"
    ],
    "external_referrals": ["Community Pharmacy", "Insurance Benefits Verification"]
}

Focus ONLY on hospital-to-home medication transition. No inpatient medication management.`,
		c.Name, c.PatientID,
		patient.OrNotSpecified(c.PrimaryDiagnosis),
		patient.OrDefault(c.SecondaryDiagnoses, "None"),
		patient.OrDefault(c.Allergies, "None"),
		patient.OrDefault(c.Medication, "None specified"),
		patient.OrNotSpecified(c.Dosage),
		patient.OrNotSpecified(c.Frequency),
		patient.OrNotSpecified(c.Route),
		patient.OrNotSpecified(c.DurationOfTherapy),
		patient.OrDefault(c.VascularAccess, "None"),
		patient.OrNotSpecified(c.PrescriberName),
		patient.OrDefault(c.NPINumber, "Not available"),
		patient.OrDefault(c.PrescriberContact, "Not available"),
		in.PrimaryConcern)

	return buf.String()
}

func pharmacyFallback(c *patient.PatientCase) payload {
	route := strings.TrimSpace(c.Route)

	routeTransition := "no_transition"
	if strings.EqualFold(route, "iv") {
		routeTransition = "iv_to_oral"
	}

	routeRec := "Confirm medication administration route for home use"
	if route != "" {
		routeRec = fmt.Sprintf("Arrange transition from %s to oral route if applicable", route)
	}

	return payload{
		structured: map[string]interface{}{
			"medication_reconciliation_needed": true,
			"erx_handoff_required":             true,
			"route_transition":                 routeTransition,
			"insurance_coverage_verified":      false,
			"pickup_delivery_arranged":         false,
			"allergy_alerts_documented":        true,
			"duration_confirmed":               true,
		},
		recommendations: []string{
			"Complete medication reconciliation with discharge medications",
			"Coordinate eRx handoff to patient's preferred community pharmacy",
			"Verify insurance coverage for all discharge medications",
			routeRec,
		},
		nextSteps: []string{
			"Contact community pharmacy for medication availability before discharge",
			"Arrange prescription pickup or delivery coordination",
			"Provide patient/caregiver education on new medication regimen",
			"Schedule follow-up for medication effectiveness review",
		},
		externalReferrals: []string{"Community Pharmacy", "Insurance Benefits Verification"},
	}
}

// medicationSummary renders "medication - dosage frequency (route)" with the
// pieces the record actually has.
func medicationSummary(c *patient.PatientCase) string {
	info := patient.OrDefault(c.Medication, "None specified")
	if c.Dosage != "" {
		info += " - " + c.Dosage
	}
	if c.Frequency != "" {
		info += " " + c.Frequency
	}
	if c.Route != "" {
		info += " (" + c.Route + ")"
	}
	return info
}

func buildPharmacyForm(c *patient.PatientCase) *HandoffForm {
	prescriber := patient.OrDefault(c.PrescriberName, "Unknown")
	if c.PrescriberContact != "" {
		prescriber += " - " + c.PrescriberContact
	}

	return &HandoffForm{
		FormID: "pharmacy_" + c.PatientID,
		Title:  "Pharmacy Consultation Form",
		Fields: []FormField{
			{Name: "patient_name", Type: "text", Label: "Patient Name", Value: c.Name, Required: true},
			{Name: "consultation_type", Type: "select", Label: "Consultation Type", Value: "medication_review",
				Options: []string{"medication_review", "drug_interaction", "dosing_optimization", "adherence_support"}},
			{Name: "current_medications", Type: "textarea", Label: "Current Medications",
				Value: medicationSummary(c)},
			{Name: "allergies", Type: "text", Label: "Allergies",
				Value: patient.OrDefault(c.Allergies, "None")},
			{Name: "prescriber_info", Type: "text", Label: "Prescriber", Value: prescriber},
		},
		Recipient: "Clinical Pharmacist",
	}
}
