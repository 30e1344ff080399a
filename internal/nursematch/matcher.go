package nursematch

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/valyala/bytebufferpool"
	"go.uber.org/zap"

	"github.com/discharge-coordinator/internal/llm"
)

const (
	defaultTopN         = 5
	defaultTopKRetrieve = 15
)

var noCandidateRemediation = []string{
	"Consider expanding geographic search radius",
	"Review certification requirements - may need specialist referral",
	"Check if patient needs can be met with available license types",
	"Verify insurance coverage and payer enrollment",
}

// Generator produces free-form model output for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Matcher runs the retrieve / filter / rank pipeline over a roster.
type Matcher struct {
	roster       *Roster
	gateway      Generator
	logger       *zap.Logger
	topKRetrieve int
}

// NewMatcher wires a matcher over the roster. gateway may be nil, in which
// case ranking always uses the deterministic scorer.
func NewMatcher(roster *Roster, gateway Generator, logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{
		roster:       roster,
		gateway:      gateway,
		logger:       logger.Named("nursematch"),
		topKRetrieve: defaultTopKRetrieve,
	}
}

// Recommend returns ranked nurse recommendations for the patient. Every
// failure mode short of a programming error is reported inside the result:
// an empty roster or an empty post-filter pool yields Success=false with
// remediation notes, and LLM failure falls back to deterministic scoring.
func (m *Matcher) Recommend(ctx context.Context, pc PatientContext, topN int) *MatchResult {
	if topN <= 0 {
		topN = defaultTopN
	}

	candidates := m.roster.Search(pc.queryString(), m.topKRetrieve)
	if len(candidates) == 0 {
		m.logger.Warn("no nurse candidates retrieved",
			zap.Int("roster_size", m.roster.Len()))
		return noCandidatesResult()
	}

	filters := extractHardFilters(pc)
	filtered := applyHardFilters(candidates, filters)
	m.logger.Info("applied hard filters",
		zap.Int("before", len(candidates)),
		zap.Int("after", len(filtered)))
	if len(filtered) == 0 {
		return noCandidatesResult()
	}

	recs := m.rank(ctx, pc, filtered, topN)
	if len(recs) == 0 {
		return noCandidatesResult()
	}

	result := &MatchResult{
		Success:                 true,
		Message:                 fmt.Sprintf("Found %d suitable nurse recommendations", len(recs)),
		Recommendations:         recs,
		TotalCandidatesReviewed: m.roster.Len(),
	}
	if t := m.roster.LoadedAt(); !t.IsZero() {
		result.LastUpdated = t.Format("2006-01-02T15:04:05")
	}
	return result
}

func noCandidatesResult() *MatchResult {
	return &MatchResult{
		Success:          false,
		Message:          "No suitable nurses found for this patient's needs",
		Recommendations:  []Recommendation{},
		RemediationNotes: noCandidateRemediation,
	}
}

// hardFilters are the pass/fail constraints applied after retrieval.
// Preferred certifications and payer influence ranking only.
type hardFilters struct {
	requiredLicense     []string
	requiredLanguage    string
	employmentStatus    string
	vaccinationRequired bool
	preferredCerts      []string
	preferredPayer      string
}

func extractHardFilters(pc PatientContext) hardFilters {
	f := hardFilters{
		employmentStatus:    "active",
		vaccinationRequired: true,
	}

	if needs := strings.ToLower(pc.SkilledNursingNeeded); strings.TrimSpace(needs) != "" {
		if containsAny(needs, "critical", "icu", "ventilator", "central line", "picc") {
			f.requiredLicense = []string{"RN"}
		} else {
			f.requiredLicense = []string{"RN", "LPN"}
		}
	}

	if care := strings.ToLower(pc.TypeOfNursingCare); care != "" {
		if strings.Contains(care, "wound") {
			f.preferredCerts = append(f.preferredCerts, "WOCN", "CWS", "CWCN")
		}
		if strings.Contains(care, "cardiac") {
			f.preferredCerts = append(f.preferredCerts, "CCRN", "ACLS")
		}
		if strings.Contains(care, "oncology") || strings.Contains(care, "cancer") {
			f.preferredCerts = append(f.preferredCerts, "OCN")
		}
		if strings.Contains(care, "diabetes") {
			f.preferredCerts = append(f.preferredCerts, "CDE", "CDCES")
		}
	}

	if lang := strings.ToLower(strings.TrimSpace(pc.PreferredLanguage)); lang != "" && lang != "english" && lang != "en" {
		f.requiredLanguage = pc.PreferredLanguage
	}

	if ins := strings.ToLower(pc.InsuranceCoverageStatus); strings.Contains(ins, "medicare") {
		f.preferredPayer = "Medicare"
	} else if strings.Contains(ins, "medicaid") {
		f.preferredPayer = "Medicaid"
	}

	return f
}

func applyHardFilters(candidates []NurseProfile, f hardFilters) []NurseProfile {
	filtered := make([]NurseProfile, 0, len(candidates))
	for _, nurse := range candidates {
		if len(f.requiredLicense) > 0 && !containsFold(f.requiredLicense, nurse.LicenseType) {
			continue
		}
		if f.requiredLanguage != "" && !containsFold(nurse.Languages, f.requiredLanguage) {
			continue
		}
		if f.employmentStatus != "" && nurse.EmploymentStatus != f.employmentStatus {
			continue
		}
		if f.vaccinationRequired && nurse.CovidVaccinationStatus != "vaccinated" {
			continue
		}
		filtered = append(filtered, nurse)
	}
	return filtered
}

// rank asks the model to score the filtered candidates and falls back to
// deterministic scoring on any failure.
func (m *Matcher) rank(ctx context.Context, pc PatientContext, candidates []NurseProfile, topN int) []Recommendation {
	if m.gateway == nil {
		return fallbackRecommendations(pc, candidates, topN)
	}

	prompt := buildRankPrompt(pc, candidates, topN)
	raw, err := m.gateway.Generate(ctx, prompt)
	if err != nil {
		m.logger.Warn("nurse ranking model unavailable, using deterministic scoring", zap.Error(err))
		return fallbackRecommendations(pc, candidates, topN)
	}

	recs, err := m.parseRankResponse(raw, candidates)
	if err != nil || len(recs) == 0 {
		m.logger.Warn("could not parse nurse ranking response, using deterministic scoring", zap.Error(err))
		return fallbackRecommendations(pc, candidates, topN)
	}
	if len(recs) > topN {
		recs = recs[:topN]
	}
	return recs
}

func buildRankPrompt(pc PatientContext, candidates []NurseProfile, topN int) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	orDefault := func(v, def string) string {
		if strings.TrimSpace(v) == "" {
			return def
		}
		return v
	}

	fmt.Fprintf(buf, `You are an expert healthcare staffing coordinator. Analyze the patient's needs and rank the most suitable nurses.

PATIENT PROFILE:
- Name: %s
- Age: %s
- Primary Diagnosis: %s
- Secondary Diagnoses: %s
- Skilled Nursing Needed: %s
- Type of Care: %s
- Equipment Needed: %s
- Medications: %s
- Location: %s
- Insurance: %s
- Special Instructions: %s

AVAILABLE NURSES:
`,
		orDefault(pc.Name, "Patient"),
		orDefault(pc.Age, "Unknown"),
		orDefault(pc.PrimaryDiagnosis, "Not specified"),
		orDefault(pc.SecondaryDiagnoses, "None"),
		orDefault(pc.SkilledNursingNeeded, "Not specified"),
		orDefault(pc.TypeOfNursingCare, "General"),
		orDefault(pc.EquipmentNeeded, "None"),
		orDefault(pc.Medication, "None specified"),
		orDefault(pc.Address, "Not specified"),
		orDefault(pc.InsuranceCoverageStatus, "Unknown"),
		orDefault(pc.SpecialInstructions, "None"))

	for i, nurse := range candidates {
		fmt.Fprintf(buf, `
NURSE %d: %s (ID: %s)
- License: %s
- Experience: %d years
- Certifications: %s
- Specialties: %s
- Languages: %s
- Service Area: %s (%d mile radius)
- Shifts: %s
- Availability: %s
- Payers: %s
- Rate: $%.2f/hour
- Summary: %s
`,
			i+1, nurse.Name, nurse.NurseID,
			nurse.LicenseType,
			nurse.YearsExperience,
			strings.Join(nurse.Certifications, ", "),
			strings.Join(nurse.Specialties, ", "),
			strings.Join(nurse.Languages, ", "),
			nurse.ServiceAreaZip, nurse.CoverageRadiusMiles,
			strings.Join(nurse.ShiftPreferences, ", "),
			nurse.AvailabilitySlots,
			strings.Join(nurse.PayerEnrollment, ", "),
			nurse.HourlyRate,
			nurse.ProfileSummary)
	}

	fmt.Fprintf(buf, `
TASK: Rank the top %d nurses for this patient. For each recommendation, provide:
1. Match score (0-100)
2. Rationale explaining why this nurse is a good fit
3. Key strengths that match patient needs
4. Any potential concerns or gaps
5. Availability assessment
6. Distance/coverage assessment

Consider clinical expertise match, required certifications, experience level,
language and cultural considerations, geographic accessibility, schedule
compatibility, insurance alignment, and cost-effectiveness.

IMPORTANT: Respond ONLY with valid JSON in this exact format:
{
    "recommendations": [
        {
            "nurse_id": "N001",
            "match_score": 95,
            "rationale": "Detailed explanation of why this nurse is recommended",
            "key_strengths": ["strength 1", "strength 2"],
            "potential_concerns": ["concern 1"],
            "availability_match": "Excellent - available during required hours",
            "distance_estimate": "Within 10 miles of patient location"
        }
    ]
}`, topN)

	return buf.String()
}

// parseRankResponse maps the model's recommendation array back onto the
// candidate pool. Entries naming a nurse outside the pool are logged and
// skipped rather than failing the whole ranking.
func (m *Matcher) parseRankResponse(raw string, candidates []NurseProfile) ([]Recommendation, error) {
	obj, err := llm.ExtractJSON(raw)
	if err != nil {
		return nil, err
	}

	items, ok := obj["recommendations"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: missing recommendations array", llm.ErrMalformedResponse)
	}

	byID := make(map[string]NurseProfile, len(candidates))
	for _, nurse := range candidates {
		byID[nurse.NurseID] = nurse
	}

	recs := make([]Recommendation, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		id := llm.StringField(entry, "nurse_id", "")
		nurse, ok := byID[id]
		if !ok {
			m.logger.Warn("model recommended unknown nurse", zap.String("nurse_id", id))
			continue
		}
		recs = append(recs, Recommendation{
			Nurse:             nurse,
			MatchScore:        llm.NumberField(entry, "match_score", 0),
			Rationale:         llm.StringField(entry, "rationale", ""),
			KeyStrengths:      llm.StringSlice(entry, "key_strengths"),
			PotentialConcerns: llm.StringSlice(entry, "potential_concerns"),
			AvailabilityMatch: llm.StringField(entry, "availability_match", ""),
			DistanceEstimate:  llm.StringField(entry, "distance_estimate", ""),
		})
	}
	return recs, nil
}

// fallbackRecommendations scores every filtered candidate deterministically,
// sorts by score descending, and keeps the top N. The base score rewards
// experience and certification count; bonuses reward alignment between the
// nurse's specialties and the patient's condition.
func fallbackRecommendations(pc PatientContext, candidates []NurseProfile, topN int) []Recommendation {
	recs := make([]Recommendation, 0, len(candidates))
	for _, nurse := range candidates {
		recs = append(recs, scoreCandidate(pc, nurse))
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].MatchScore > recs[j].MatchScore
	})
	if len(recs) > topN {
		recs = recs[:topN]
	}
	return recs
}

func scoreCandidate(pc PatientContext, nurse NurseProfile) Recommendation {
	base := 50 + nurse.YearsExperience*3 + len(nurse.Certifications)*5
	if base > 100 {
		base = 100
	}

	strengths := []string{
		fmt.Sprintf("%d years experience", nurse.YearsExperience),
		fmt.Sprintf("%s license", nurse.LicenseType),
	}

	diagnosis := strings.ToLower(pc.PrimaryDiagnosis)
	careType := strings.ToLower(pc.TypeOfNursingCare)
	nursingNeeds := strings.ToLower(pc.SkilledNursingNeeded)
	haystack := diagnosis + careType + nursingNeeds

	specialties := lowerAll(nurse.Specialties)
	certs := upperAll(nurse.Certifications)

	bonus := 0
	if containsAny(haystack, "cardiac", "heart", "cardio") &&
		anyContains(specialties, "cardiac", "heart", "critical care") {
		bonus += 15
		strengths = append(strengths, "Cardiac care specialist")
	}
	if containsAny(haystack, "wound", "surgical", "post-op") &&
		anyContains(specialties, "wound", "surgical", "post-surgical") {
		bonus += 15
		strengths = append(strengths, "Wound care specialist")
	}
	if age, ok := pc.ageYears(); ok {
		if age < 18 && anyContains(specialties, "pediatric", "child", "neonatal") {
			bonus += 20
			strengths = append(strengths, "Pediatric specialist")
		}
		if age > 65 && anyContains(specialties, "geriatric", "elderly") {
			bonus += 10
			strengths = append(strengths, "Geriatric experience")
		}
	}
	if (contains(certs, "WOCN") || contains(certs, "CWS")) &&
		strings.Contains(diagnosis+careType, "wound") {
		bonus += 10
		strengths = append(strengths, "Wound care certified")
	}
	if (contains(certs, "CCRN") || contains(certs, "ACLS")) &&
		strings.Contains(diagnosis+careType, "cardiac") {
		bonus += 10
		strengths = append(strengths, "Critical care certified")
	}
	if lang := strings.ToLower(strings.TrimSpace(pc.PreferredLanguage)); lang != "" && lang != "english" && lang != "en" {
		if containsFold(nurse.Languages, pc.PreferredLanguage) {
			bonus += 15
			strengths = append(strengths, "Speaks "+pc.PreferredLanguage)
		}
	}
	if ins := strings.ToLower(pc.InsuranceCoverageStatus); ins != "" {
		payers := lowerAll(nurse.PayerEnrollment)
		if (strings.Contains(ins, "medicare") && contains(payers, "medicare")) ||
			(strings.Contains(ins, "medicaid") && contains(payers, "medicaid")) {
			bonus += 5
			strengths = append(strengths, "Insurance compatible")
		}
	}

	score := base + bonus
	if score > 100 {
		score = 100
	}

	subject := pc.PrimaryDiagnosis
	if strings.TrimSpace(subject) == "" {
		subject = "patient needs"
	}
	rationale := fmt.Sprintf("Good match for %s with %d years of experience. ", subject, nurse.YearsExperience)
	if bonus > 0 {
		rationale += "Strong specialty alignment and relevant certifications provide excellent care capability."
	} else {
		rationale += "Solid general nursing background suitable for comprehensive patient care."
	}

	return Recommendation{
		Nurse:             nurse,
		MatchScore:        float64(score),
		Rationale:         rationale,
		KeyStrengths:      strengths,
		PotentialConcerns: []string{"LLM analysis unavailable - enhanced matching used"},
		AvailabilityMatch: "Please verify availability directly",
		DistanceEstimate:  "Please verify coverage area",
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

func anyContains(values []string, terms ...string) bool {
	for _, v := range values {
		for _, t := range terms {
			if strings.Contains(v, t) {
				return true
			}
		}
	}
	return false
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(v, target) {
			return true
		}
	}
	return false
}

func lowerAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}

func upperAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToUpper(v)
	}
	return out
}
