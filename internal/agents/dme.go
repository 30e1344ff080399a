package agents

import (
	"fmt"
	"strings"

	"github.com/valyala/bytebufferpool"

	"github.com/discharge-coordinator/internal/patient"
)

// dmeVariant coordinates home medical equipment: physician orders, insurance
// authorization, and delivery scheduled ahead of discharge.
func dmeVariant() variant {
	return variant{
		buildPrompt: buildDMEPrompt,
		fallback:    dmeFallback,
		buildForm:   buildDMEForm,
	}
}

func buildDMEPrompt(c *patient.PatientCase, in *patient.CaregiverInput) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	fmt.Fprintf(buf, `You are a DME (Durable Medical Equipment) coordination agent for hospital discharge planning.

SCOPE: ONLY home medical equipment orders and fulfillment. NO inpatient equipment.

Patient Discharge Profile:
- Patient: %s (ID: %s)
- Primary Diagnosis: %s
- Secondary Diagnoses: %s
- Discharge Date: %s

HOME EQUIPMENT REQUIREMENTS:
- Equipment Needed: %s
- Current DME Supplier: %s
- Delivery Date: %s

MEDICAL NECESSITY:
- Primary Diagnosis Code: %s
- Prescriber: %s
- NPI Number: %s

INSURANCE & AUTHORIZATION:
- Coverage Status: %s

DISCHARGE PLANNING CONCERN: %s

FOCUS AREAS (home equipment only):
1. DME orders with diagnosis codes and medical necessity
2. Equipment delivery coordination before discharge
3. Insurance prior authorization/pre-certification
4. Home setup and patient/caregiver training
5. Duration of need and follow-up requirements

EXCLUDE: Hospital equipment, inpatient device management, ICU monitoring equipment

IMPORTANT: Respond ONLY with a valid JSON object for HOME DME COORDINATION:
{
    "structured_data": {
        "equipment_category": "respiratory",
        "medical_necessity_documented": true,
        "insurance_authorization_required": true,
        "delivery_timeline": "before discharge",
        "setup_training_needed": true,
        "duration_of_need": "ongoing",
        "physician_order_required": true
    },
    "recommendations": [
        "Obtain physician order with diagnosis code and medical necessity",
        "Submit insurance prior authorization for home oxygen equipment",
        "Schedule equipment delivery 24 hours before discharge"
    ],
    "next_steps": [
        "Contact DME supplier for equipment availability",
        "Submit prior authorization to insurance",
        "Schedule home setup and training appointment"
    ],
    "external_referrals": ["DME Supplier", "Insurance Authorization Department"]
}

Focus ONLY on home equipment needs. No hospital equipment recommendations.`,
		c.Name, c.PatientID,
		patient.OrNotSpecified(c.PrimaryDiagnosis),
		patient.OrDefault(c.SecondaryDiagnoses, "None"),
		patient.OrNotSpecified(c.DischargeDate),
		patient.OrDefault(c.EquipmentNeeded, "None specified"),
		patient.OrDefault(c.DMESupplier, "Not assigned"),
		patient.OrDefault(c.EquipmentDeliveryDate, "Not scheduled"),
		patient.OrNotSpecified(c.PrimaryDiagnosis),
		patient.OrNotSpecified(c.PrescriberName),
		patient.OrDefault(c.NPINumber, "Not available"),
		patient.OrDefault(c.InsuranceCoverageStatus, "Unknown"),
		in.PrimaryConcern)

	return buf.String()
}

// equipmentCategory buckets free-text equipment into the coarse categories
// suppliers route on.
func equipmentCategory(equipment string) string {
	lower := strings.ToLower(equipment)
	switch {
	case strings.Contains(lower, "wheelchair"):
		return "mobility"
	case strings.Contains(lower, "oxygen"):
		return "respiratory"
	default:
		return "general"
	}
}

func dmeFallback(c *patient.PatientCase) payload {
	equipment := patient.OrDefault(c.EquipmentNeeded, "mobility equipment")
	diagnosis := patient.OrDefault(c.PrimaryDiagnosis, "complex medical condition")

	return payload{
		structured: map[string]interface{}{
			"equipment_category":               equipmentCategory(equipment),
			"medical_necessity_documented":     true,
			"medical_necessity":                fmt.Sprintf("Patient with %s requires %s for safe transition to home care", diagnosis, equipment),
			"insurance_authorization_required": true,
			"delivery_timeline":                "before discharge",
			"setup_training_needed":            true,
			"duration_of_need":                 "ongoing",
			"physician_order_required":         true,
		},
		recommendations: []string{
			fmt.Sprintf("Obtain physician order for %s with diagnosis code and medical necessity", equipment),
			"Submit insurance prior authorization for home medical equipment",
			"Schedule equipment delivery 24-48 hours before discharge",
			"Arrange setup and training appointment for patient/caregiver",
		},
		nextSteps: []string{
			"Contact DME supplier for equipment availability and delivery scheduling",
			"Submit prior authorization to insurance with medical necessity documentation",
			"Schedule home setup and training appointment",
			"Coordinate delivery timing with discharge planning team",
		},
		externalReferrals: []string{"DME Supplier", "Insurance Authorization Department"},
	}
}

func buildDMEForm(c *patient.PatientCase) *HandoffForm {
	return &HandoffForm{
		FormID: "dme_" + c.PatientID,
		Title:  "DME Equipment Request Form",
		Fields: []FormField{
			{Name: "patient_name", Type: "text", Label: "Patient Name", Value: c.Name, Required: true},
			{Name: "equipment_needed", Type: "textarea", Label: "Equipment Needed",
				Value: patient.OrDefault(c.EquipmentNeeded, "None")},
			{Name: "delivery_date", Type: "date", Label: "Requested Delivery Date",
				Value: c.EquipmentDeliveryDate},
			{Name: "insurance_status", Type: "text", Label: "Insurance Coverage Status",
				Value: patient.OrDefault(c.InsuranceCoverageStatus, "Unknown")},
			{Name: "delivery_address", Type: "textarea", Label: "Delivery Address",
				Value: patient.OrNotSpecified(c.Address)},
		},
		Recipient: patient.OrDefault(c.DMESupplier, "DME Supplier"),
	}
}
