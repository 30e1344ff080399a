// Package nursematch matches discharged patients with home-care nurses. A
// bleve index over roster profile text retrieves candidates, hard filters
// enforce licensing and compliance requirements, and an LLM (with a
// deterministic scoring fallback) ranks the survivors.
package nursematch

import (
	"strconv"
	"strings"
)

// NurseProfile is one roster entry.
type NurseProfile struct {
	NurseID                 string   `json:"nurse_id"`
	Name                    string   `json:"name"`
	LicenseType             string   `json:"license_type"`
	Certifications          []string `json:"certifications"`
	Specialties             []string `json:"specialties"`
	YearsExperience         int      `json:"years_experience"`
	Languages               []string `json:"languages"`
	ServiceAreaZip          string   `json:"service_area_zip"`
	CoverageRadiusMiles     int      `json:"coverage_radius_miles"`
	ShiftPreferences        []string `json:"shift_preferences"`
	AvailabilitySlots       string   `json:"availability_slots"`
	EmploymentStatus        string   `json:"employment_status"`
	PayerEnrollment         []string `json:"payer_enrollment"`
	CovidVaccinationStatus  string   `json:"covid_vaccination_status"`
	HourlyRate              float64  `json:"hourly_rate"`
	ProfileSummary          string   `json:"profile_summary"`
}

// searchText renders the profile as the document indexed for retrieval.
func (n *NurseProfile) searchText() string {
	var b strings.Builder
	b.WriteString(n.Name)
	b.WriteString(" - ")
	b.WriteString(n.LicenseType)
	b.WriteString(" with ")
	b.WriteString(strconv.Itoa(n.YearsExperience))
	b.WriteString(" years experience. Certifications: ")
	b.WriteString(strings.Join(n.Certifications, ", "))
	b.WriteString(" Specialties: ")
	b.WriteString(strings.Join(n.Specialties, ", "))
	b.WriteString(" Languages: ")
	b.WriteString(strings.Join(n.Languages, ", "))
	b.WriteString(" Shift preferences: ")
	b.WriteString(strings.Join(n.ShiftPreferences, ", "))
	b.WriteString(" Service area: ")
	b.WriteString(n.ServiceAreaZip)
	b.WriteString(" (")
	b.WriteString(strconv.Itoa(n.CoverageRadiusMiles))
	b.WriteString(" mile radius) Payers: ")
	b.WriteString(strings.Join(n.PayerEnrollment, ", "))
	b.WriteString(" Summary: ")
	b.WriteString(n.ProfileSummary)
	return b.String()
}

// Recommendation is one ranked nurse with its rationale.
type Recommendation struct {
	Nurse             NurseProfile `json:"nurse"`
	MatchScore        float64      `json:"match_score"`
	Rationale         string       `json:"rationale"`
	KeyStrengths      []string     `json:"key_strengths"`
	PotentialConcerns []string     `json:"potential_concerns"`
	AvailabilityMatch string       `json:"availability_match"`
	DistanceEstimate  string       `json:"distance_estimate"`
}

// MatchResult is the full matching outcome. An empty candidate pool is a
// structured failure with remediation notes, not an error.
type MatchResult struct {
	Success                 bool             `json:"success"`
	Message                 string           `json:"message"`
	Recommendations         []Recommendation `json:"recommendations"`
	RemediationNotes        []string         `json:"remediation_notes,omitempty"`
	TotalCandidatesReviewed int              `json:"total_candidates_reviewed,omitempty"`
	LastUpdated             string           `json:"last_updated,omitempty"`
}

// PatientContext carries the patient fields the matcher consults. All values
// are free text as entered on the discharge record; empty means unknown.
type PatientContext struct {
	Name                    string
	Age                     string
	PrimaryDiagnosis        string
	SecondaryDiagnoses      string
	SkilledNursingNeeded    string
	TypeOfNursingCare       string
	EquipmentNeeded         string
	Medication              string
	Address                 string
	SpecialInstructions     string
	PreferredLanguage       string
	InsuranceCoverageStatus string
}

// ageYears parses the free-text age field. ok is false when it is absent or
// not a plain integer.
func (pc *PatientContext) ageYears() (int, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(pc.Age))
	if err != nil {
		return 0, false
	}
	return v, true
}

// queryString concatenates the populated context fields into the retrieval
// query. Absent fields are omitted rather than rendered as placeholders so
// they cannot skew lexical matching.
func (pc *PatientContext) queryString() string {
	parts := make([]string, 0, 9)
	add := func(label, v string) {
		if strings.TrimSpace(v) != "" {
			parts = append(parts, label+": "+v)
		}
	}
	add("Age", pc.Age)
	add("Primary diagnosis", pc.PrimaryDiagnosis)
	add("Secondary diagnoses", pc.SecondaryDiagnoses)
	add("Nursing needs", pc.SkilledNursingNeeded)
	add("Care type", pc.TypeOfNursingCare)
	add("Equipment", pc.EquipmentNeeded)
	add("Medications", pc.Medication)
	add("Location", pc.Address)
	add("Special instructions", pc.SpecialInstructions)
	return strings.Join(parts, " ")
}
