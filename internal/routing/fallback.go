package routing

import (
	"fmt"
	"strings"

	"github.com/discharge-coordinator/internal/agents"
	"github.com/discharge-coordinator/internal/patient"
)

// FallbackDecision is the deterministic rule engine: keyword and field checks
// in a fixed order, so identical inputs always route identically.
func FallbackDecision(c *patient.PatientCase, in *patient.CaregiverInput) *Decision {
	var selected []agents.Type
	var reasons []string

	concern := strings.ToLower(in.PrimaryConcern)

	if containsAny(concern, "pain", "wound", "vital", "assessment") {
		selected = append(selected, agents.Nursing)
		reasons = append(reasons, "nursing care for wound management and vital signs monitoring")
	}

	if strings.EqualFold(strings.TrimSpace(c.SkilledNursingNeeded), "yes") {
		if !hasAgent(selected, agents.Nursing) {
			selected = append(selected, agents.Nursing)
		}
		reasons = append(reasons, "home health referral setup and discharge education coordination")
	}

	if strings.TrimSpace(c.EquipmentNeeded) != "" {
		selected = append(selected, agents.DME)
		reasons = append(reasons, fmt.Sprintf("equipment delivery coordination for %s before discharge",
			strings.ToLower(c.EquipmentNeeded)))
	}

	if strings.TrimSpace(c.Medication) != "" {
		selected = append(selected, agents.Pharmacy)
		reasons = append(reasons, "prescription transfer and community pharmacy coordination")
	} else if strings.Contains(concern, "medication") {
		selected = append(selected, agents.Pharmacy)
		reasons = append(reasons, "medication handoff logistics for discharge")
	}

	insurance := strings.ToLower(strings.TrimSpace(c.InsuranceCoverageStatus))
	if insurance == "pending" || insurance == "denied" || insurance == "unknown" {
		selected = append(selected, agents.State)
		reasons = append(reasons, "insurance authorization processing and coverage verification")
	} else if containsAny(concern, "insurance", "authorization", "medicaid", "coverage") {
		selected = append(selected, agents.State)
		reasons = append(reasons, "insurance coordination and prior authorization processing")
	}

	if len(selected) == 0 {
		selected = []agents.Type{agents.Nursing}
		reasons = []string{"discharge coordination and home health setup"}
	}

	diagnosis := patient.OrDefault(c.PrimaryDiagnosis, "complex medical condition")
	reasoning := fmt.Sprintf("Discharge coordination required for %s transition to home care. ",
		strings.ToLower(diagnosis))
	switch len(reasons) {
	case 1:
		reasoning += fmt.Sprintf("Requires %s to ensure smooth discharge logistics.", reasons[0])
	case 2:
		reasoning += fmt.Sprintf("Requires %s and %s for comprehensive discharge coordination.",
			reasons[0], reasons[1])
	default:
		reasoning += fmt.Sprintf("Requires coordination of %s, and %s for seamless hospital-to-home transition logistics.",
			strings.Join(reasons[:len(reasons)-1], ", "), reasons[len(reasons)-1])
	}

	priority := 3
	switch strings.ToLower(in.UrgencyLevel) {
	case "high":
		priority = 8
	case "medium":
		priority = 5
	}

	return &Decision{
		PatientID:         c.PatientID,
		RecommendedAgents: selected,
		Reasoning:         reasoning,
		PriorityScore:     priority,
		EstimatedTimeline: "24-48 hours post-discharge",
	}
}

func containsAny(s string, terms ...string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

func hasAgent(list []agents.Type, target agents.Type) bool {
	for _, a := range list {
		if a == target {
			return true
		}
	}
	return false
}
