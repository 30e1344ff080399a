// Package patient holds the case model consumed by the coordination layer
// and the in-memory store it is served from. A PatientCase is immutable
// input to one processing run; every optional field is a plain string and
// absence is a first-class value rendered via OrDefault at prompt and form
// boundaries, never an empty interpolation.
package patient

import (
	"errors"
	"strings"
)

// ErrNotFound is returned when a referenced patient is absent from the
// store. It is the one condition that propagates to the external interface.
var ErrNotFound = errors.New("patient: not found")

// NotSpecified is the placeholder rendered for absent textual fields.
const NotSpecified = "Not specified"

// PatientCase is one patient's discharge-planning record.
type PatientCase struct {
	// Identity
	PatientID     string `json:"patient_id"`
	Name          string `json:"name"`
	DateOfBirth   string `json:"date_of_birth,omitempty"`
	Age           string `json:"age,omitempty"`
	Gender        string `json:"gender,omitempty"`
	MRN           string `json:"mrn,omitempty"`
	Address       string `json:"address,omitempty"`
	ContactNumber string `json:"contact_number,omitempty"`

	// Stay
	AdmissionDate    string `json:"admission_date,omitempty"`
	DischargeDate    string `json:"discharge_date,omitempty"`
	LengthOfStayDays string `json:"length_of_stay_days,omitempty"`

	// Clinical
	PrimaryDiagnosis   string `json:"primary_diagnosis"`
	SecondaryDiagnoses string `json:"secondary_diagnoses,omitempty"`
	Allergies          string `json:"allergies,omitempty"`

	// Prescriber
	PrescriberName    string `json:"prescriber_name,omitempty"`
	PrescriberContact string `json:"prescriber_contact,omitempty"`
	NPINumber         string `json:"npi_number,omitempty"`

	// Medication
	Medication        string `json:"medication,omitempty"`
	Dosage            string `json:"dosage,omitempty"`
	Frequency         string `json:"frequency,omitempty"`
	Route             string `json:"route,omitempty"`
	DurationOfTherapy string `json:"duration_of_therapy,omitempty"`
	VascularAccess    string `json:"vascular_access,omitempty"`

	// Nursing
	SkilledNursingNeeded      string `json:"skilled_nursing_needed,omitempty"`
	NursingVisitFrequency     string `json:"nursing_visit_frequency,omitempty"`
	TypeOfNursingCare         string `json:"type_of_nursing_care,omitempty"`
	NurseAgency               string `json:"nurse_agency,omitempty"`
	EmergencyContactProcedure string `json:"emergency_contact_procedure,omitempty"`

	// Equipment
	EquipmentNeeded       string `json:"equipment_needed,omitempty"`
	EquipmentDeliveryDate string `json:"equipment_delivery_date,omitempty"`
	DMESupplier           string `json:"dme_supplier,omitempty"`

	// Administrative
	InsuranceCoverageStatus string `json:"insurance_coverage_status,omitempty"`
	FollowUpDate            string `json:"follow_up_date,omitempty"`
	PreferredLanguage       string `json:"preferred_language,omitempty"`

	SpecialInstructions string `json:"special_instructions,omitempty"`
}

// CaregiverInput is the discharge planner's free-text request for a case.
type CaregiverInput struct {
	PatientID         string   `json:"patient_id"`
	UrgencyLevel      string   `json:"urgency_level"` // low, medium, high
	PrimaryConcern    string   `json:"primary_concern"`
	RequestedServices []string `json:"requested_services,omitempty"`
	AdditionalNotes   string   `json:"additional_notes,omitempty"`
	ContactPreference string   `json:"contact_preference,omitempty"`
}

// Validate checks the fields the core depends on.
func (in *CaregiverInput) Validate() error {
	if strings.TrimSpace(in.PatientID) == "" {
		return errors.New("patient_id is required")
	}
	if strings.TrimSpace(in.PrimaryConcern) == "" {
		return errors.New("primary_concern is required")
	}
	switch strings.ToLower(in.UrgencyLevel) {
	case "low", "medium", "high":
	default:
		return errors.New("urgency_level must be one of low, medium, high")
	}
	return nil
}

// Normalize trims whitespace on every field once at load time so business
// logic never needs conditional lookups.
func (c *PatientCase) Normalize() {
	fields := []*string{
		&c.PatientID, &c.Name, &c.DateOfBirth, &c.Age, &c.Gender, &c.MRN,
		&c.Address, &c.ContactNumber, &c.AdmissionDate, &c.DischargeDate,
		&c.LengthOfStayDays, &c.PrimaryDiagnosis, &c.SecondaryDiagnoses,
		&c.Allergies, &c.PrescriberName, &c.PrescriberContact, &c.NPINumber,
		&c.Medication, &c.Dosage, &c.Frequency, &c.Route,
		&c.DurationOfTherapy, &c.VascularAccess, &c.SkilledNursingNeeded,
		&c.NursingVisitFrequency, &c.TypeOfNursingCare, &c.NurseAgency,
		&c.EmergencyContactProcedure, &c.EquipmentNeeded,
		&c.EquipmentDeliveryDate, &c.DMESupplier, &c.InsuranceCoverageStatus,
		&c.FollowUpDate, &c.PreferredLanguage, &c.SpecialInstructions,
	}
	for _, f := range fields {
		*f = strings.TrimSpace(*f)
	}
}

// OrDefault renders v, or the placeholder when v is absent. Used wherever a
// case field is interpolated into a prompt or form.
func OrDefault(v, placeholder string) string {
	if strings.TrimSpace(v) == "" {
		return placeholder
	}
	return v
}

// OrNotSpecified is the common OrDefault(v, "Not specified") shorthand.
func OrNotSpecified(v string) string {
	return OrDefault(v, NotSpecified)
}
