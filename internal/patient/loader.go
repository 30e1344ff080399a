package patient

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// columnAliases maps each PatientCase field to the workbook header names it
// may appear under. Matching is case-insensitive on the normalized header.
var columnAliases = map[string][]string{
	"patient_id":            {"patientid", "patient id", "id"},
	"name":                  {"name", "patient name"},
	"date_of_birth":         {"date of birth", "dob"},
	"age":                   {"age"},
	"gender":                {"gender", "sex"},
	"mrn":                   {"mrn", "medical record number"},
	"address":               {"address", "patient address"},
	"contact_number":        {"contact number", "phone", "contact", "phone number"},
	"admission_date":        {"icu admission date", "admission date"},
	"discharge_date":        {"icu discharge date", "discharge date"},
	"length_of_stay":        {"length of stay (days)", "length of stay"},
	"primary_diagnosis":     {"primary icu diagnosis", "primary diagnosis", "diagnosis"},
	"secondary_diagnoses":   {"secondary diagnoses", "secondary diagnosis"},
	"allergies":             {"allergies", "allergy"},
	"medication":            {"medication", "drug", "med"},
	"dosage":                {"dosage", "dose"},
	"frequency":             {"frequency", "freq"},
	"route":                 {"route", "administration route"},
	"duration_of_therapy":   {"duration of therapy", "duration"},
	"vascular_access":       {"vascular access", "iv access"},
	"prescriber_name":       {"prescriber name", "doctor", "physician"},
	"prescriber_contact":    {"prescriber contact", "doctor phone"},
	"npi_number":            {"npi number", "npi"},
	"skilled_nursing":       {"skilled nursing needed", "nursing required"},
	"nursing_frequency":     {"nursing visit frequency", "visit frequency"},
	"nursing_care_type":     {"type of nursing care", "nursing care type"},
	"nurse_agency":          {"nurse agency", "home health agency"},
	"emergency_procedure":   {"emergency contact procedure", "emergency procedure"},
	"equipment_needed":      {"equipment needed", "dme required", "medical equipment"},
	"equipment_delivery":    {"equipment delivery date"},
	"dme_supplier":          {"dme supplier", "equipment supplier"},
	"insurance_status":      {"insurance coverage status", "insurance status"},
	"follow_up_date":        {"follow-up appointment date", "follow up appointment date"},
	"preferred_language":    {"preferred language", "language"},
	"special_instructions":  {"special instructions", "notes", "instructions"},
}

// LoadWorkbook reads patient cases from an .xlsx workbook's first sheet.
// Header matching is lenient (see columnAliases); rows missing a patient id
// or name are skipped with a warning rather than failing the whole load.
func LoadWorkbook(path string, logger *zap.Logger) ([]*PatientCase, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("workbook %s has no data rows", path)
	}

	colIndex := indexColumns(rows[0])
	cases := make([]*PatientCase, 0, len(rows)-1)
	skipped := 0

	for i, row := range rows[1:] {
		c := caseFromRow(row, colIndex)
		c.Normalize()
		if c.PatientID == "" || c.Name == "" {
			skipped++
			logger.Warn("skipping patient row without id or name", zap.Int("row", i+2))
			continue
		}
		cases = append(cases, c)
	}

	if len(cases) == 0 {
		return nil, fmt.Errorf("no valid patient rows in %s", path)
	}
	logger.Info("loaded patient workbook",
		zap.String("path", path),
		zap.Int("patients", len(cases)),
		zap.Int("skipped", skipped))
	return cases, nil
}

// indexColumns resolves each known field to its column position.
func indexColumns(header []string) map[string]int {
	normalized := make(map[string]int, len(header))
	for i, h := range header {
		normalized[strings.ToLower(strings.TrimSpace(h))] = i
	}
	idx := make(map[string]int)
	for field, aliases := range columnAliases {
		for _, alias := range aliases {
			if pos, ok := normalized[alias]; ok {
				idx[field] = pos
				break
			}
		}
	}
	return idx
}

func cell(row []string, idx map[string]int, field string) string {
	pos, ok := idx[field]
	if !ok || pos >= len(row) {
		return ""
	}
	return row[pos]
}

func caseFromRow(row []string, idx map[string]int) *PatientCase {
	return &PatientCase{
		PatientID:                 cell(row, idx, "patient_id"),
		Name:                      cell(row, idx, "name"),
		DateOfBirth:               cell(row, idx, "date_of_birth"),
		Age:                       cell(row, idx, "age"),
		Gender:                    cell(row, idx, "gender"),
		MRN:                       cell(row, idx, "mrn"),
		Address:                   cell(row, idx, "address"),
		ContactNumber:             cell(row, idx, "contact_number"),
		AdmissionDate:             cell(row, idx, "admission_date"),
		DischargeDate:             cell(row, idx, "discharge_date"),
		LengthOfStayDays:          cell(row, idx, "length_of_stay"),
		PrimaryDiagnosis:          cell(row, idx, "primary_diagnosis"),
		SecondaryDiagnoses:        cell(row, idx, "secondary_diagnoses"),
		Allergies:                 cell(row, idx, "allergies"),
		Medication:                cell(row, idx, "medication"),
		Dosage:                    cell(row, idx, "dosage"),
		Frequency:                 cell(row, idx, "frequency"),
		Route:                     cell(row, idx, "route"),
		DurationOfTherapy:         cell(row, idx, "duration_of_therapy"),
		VascularAccess:            cell(row, idx, "vascular_access"),
		PrescriberName:            cell(row, idx, "prescriber_name"),
		PrescriberContact:         cell(row, idx, "prescriber_contact"),
		NPINumber:                 cell(row, idx, "npi_number"),
		SkilledNursingNeeded:      cell(row, idx, "skilled_nursing"),
		NursingVisitFrequency:     cell(row, idx, "nursing_frequency"),
		TypeOfNursingCare:         cell(row, idx, "nursing_care_type"),
		NurseAgency:               cell(row, idx, "nurse_agency"),
		EmergencyContactProcedure: cell(row, idx, "emergency_procedure"),
		EquipmentNeeded:           cell(row, idx, "equipment_needed"),
		EquipmentDeliveryDate:     cell(row, idx, "equipment_delivery"),
		DMESupplier:               cell(row, idx, "dme_supplier"),
		InsuranceCoverageStatus:   cell(row, idx, "insurance_status"),
		FollowUpDate:              cell(row, idx, "follow_up_date"),
		PreferredLanguage:         cell(row, idx, "preferred_language"),
		SpecialInstructions:       cell(row, idx, "special_instructions"),
	}
}
