package nursematch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testRosterRows() [][]string {
	header := []string{
		"nurse_id", "name", "license_type", "certifications", "specialties",
		"years_experience", "languages", "service_area_zip", "coverage_radius_miles",
		"shift_preferences", "availability_slots", "employment_status",
		"payer_enrollment", "covid_vaccination_status", "hourly_rate", "profile_summary",
	}
	return [][]string{
		header,
		{"N001", "Maria Lopez", "RN", "CCRN, ACLS", "cardiac, critical care", "12",
			"English, Spanish", "10001", "25", "day, night", "Mon-Fri",
			"active", "Medicare, Medicaid", "vaccinated", "85.00",
			"Cardiac ICU veteran with telemetry and heart failure expertise"},
		{"N002", "James Chen", "RN", "WOCN", "wound, post-surgical", "8",
			"English", "10002", "unlimited", "day", "Mon-Sat",
			"active", "Medicare", "vaccinated", "78.50",
			"Wound care specialist focused on post-surgical recovery"},
		{"N003", "Priya Nair", "LPN", "", "geriatric", "3",
			"English, Hindi", "10003", "15", "day", "Tue-Thu",
			"active", "Medicaid", "vaccinated", "52.00",
			"General home care with geriatric experience"},
		{"N004", "Dana Fox", "RN", "CPN", "pediatric, respiratory", "10",
			"English", "10004", "30", "night", "Mon-Fri",
			"active", "Medicaid", "vaccinated", "80.00",
			"Pediatric respiratory care including tracheostomy and ventilator management"},
		{"N005", "Sam Ortiz", "RN", "ACLS", "cardiac", "15",
			"English", "10005", "20", "day", "Mon-Fri",
			"inactive", "Medicare", "vaccinated", "90.00",
			"Experienced cardiac nurse, currently on leave"},
		{"N006", "Lee Park", "RN", "CCRN", "critical care", "9",
			"English", "10006", "25", "night", "Mon-Sun",
			"active", "Medicare", "not_vaccinated", "82.00",
			"Critical care nurse"},
	}
}

func newTestRoster(t *testing.T) *Roster {
	t.Helper()
	r := NewRoster(zaptest.NewLogger(t))
	require.NoError(t, r.Replace(testRosterRows(), "test"))
	t.Cleanup(r.Close)
	return r
}

func TestRosterReplaceParsesListsAndRadius(t *testing.T) {
	r := newTestRoster(t)
	profiles := r.Profiles()
	require.Len(t, profiles, 6)

	maria := profiles[0]
	assert.Equal(t, "N001", maria.NurseID)
	assert.Equal(t, []string{"CCRN", "ACLS"}, maria.Certifications)
	assert.Equal(t, []string{"English", "Spanish"}, maria.Languages)
	assert.Equal(t, 12, maria.YearsExperience)

	// "unlimited" coverage becomes the 999 sentinel.
	assert.Equal(t, 999, profiles[1].CoverageRadiusMiles)
}

func TestRosterSearchEmptyQueryReturnsRosterOrder(t *testing.T) {
	r := newTestRoster(t)
	got := r.Search("", 3)
	require.Len(t, got, 3)
	assert.Equal(t, "N001", got[0].NurseID)
	assert.Equal(t, "N002", got[1].NurseID)
	assert.Equal(t, "N003", got[2].NurseID)
}

func TestRosterSearchSurvivesConcurrentReload(t *testing.T) {
	r := newTestRoster(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			if err := r.Replace(testRosterRows(), "reload"); err != nil {
				t.Error(err)
				return
			}
		}
	}()

	for reloading := true; reloading; {
		select {
		case <-done:
			reloading = false
		default:
		}
		got := r.Search("wound care", 5)
		require.NotEmpty(t, got)
	}
}

func TestRosterSearchRanksRelevantProfilesFirst(t *testing.T) {
	r := newTestRoster(t)
	got := r.Search("pediatric respiratory ventilator tracheostomy", 10)
	require.NotEmpty(t, got)
	assert.Equal(t, "N004", got[0].NurseID)
}

func TestHardFiltersRequireRNForVentilatorCare(t *testing.T) {
	r := newTestRoster(t)
	pc := PatientContext{SkilledNursingNeeded: "ventilator management"}

	filtered := applyHardFilters(r.Profiles(), extractHardFilters(pc))
	for _, nurse := range filtered {
		assert.Equal(t, "RN", nurse.LicenseType, "nurse %s", nurse.NurseID)
	}
	// N003 is an LPN, N005 inactive, N006 unvaccinated.
	ids := nurseIDs(filtered)
	assert.NotContains(t, ids, "N003")
	assert.NotContains(t, ids, "N005")
	assert.NotContains(t, ids, "N006")
}

func TestHardFiltersAllowLPNForRoutineCare(t *testing.T) {
	r := newTestRoster(t)
	pc := PatientContext{SkilledNursingNeeded: "medication reminders and dressing changes"}

	ids := nurseIDs(applyHardFilters(r.Profiles(), extractHardFilters(pc)))
	assert.Contains(t, ids, "N003")
}

func TestHardFiltersLanguageRequirement(t *testing.T) {
	r := newTestRoster(t)
	pc := PatientContext{PreferredLanguage: "Spanish"}

	ids := nurseIDs(applyHardFilters(r.Profiles(), extractHardFilters(pc)))
	assert.Equal(t, []string{"N001"}, ids)
}

func TestHardFiltersNeverPassMoreCandidates(t *testing.T) {
	r := newTestRoster(t)
	all := r.Profiles()
	for _, pc := range []PatientContext{
		{},
		{SkilledNursingNeeded: "icu step-down care"},
		{PreferredLanguage: "Hindi"},
		{TypeOfNursingCare: "wound care management"},
	} {
		filtered := applyHardFilters(all, extractHardFilters(pc))
		assert.LessOrEqual(t, len(filtered), len(all))
	}
}

func TestFallbackScoreBaseAndBounds(t *testing.T) {
	plain := NurseProfile{NurseID: "X1", Name: "Plain", LicenseType: "LPN"}
	rec := scoreCandidate(PatientContext{}, plain)
	assert.Equal(t, 50.0, rec.MatchScore)

	loaded := NurseProfile{
		NurseID:         "X2",
		Name:            "Loaded",
		LicenseType:     "RN",
		YearsExperience: 30,
		Certifications:  []string{"CCRN", "ACLS", "WOCN", "CWS", "OCN"},
		Specialties:     []string{"cardiac", "wound"},
	}
	pc := PatientContext{PrimaryDiagnosis: "cardiac wound complications"}
	rec = scoreCandidate(pc, loaded)
	assert.Equal(t, 100.0, rec.MatchScore, "score must cap at 100")
}

func TestFallbackScoreSpecialtyBonuses(t *testing.T) {
	cardiac := NurseProfile{
		NurseID:         "X3",
		LicenseType:     "RN",
		YearsExperience: 5,
		Certifications:  []string{"ACLS"},
		Specialties:     []string{"cardiac"},
	}
	pc := PatientContext{PrimaryDiagnosis: "Congestive heart failure", TypeOfNursingCare: "cardiac care"}
	rec := scoreCandidate(pc, cardiac)
	// base 50+15+5=70, +15 specialty, +10 cert
	assert.Equal(t, 95.0, rec.MatchScore)
	assert.Contains(t, rec.KeyStrengths, "Cardiac care specialist")
	assert.Contains(t, rec.KeyStrengths, "Critical care certified")
}

func TestFallbackScorePediatricBonus(t *testing.T) {
	peds := NurseProfile{
		NurseID:     "X4",
		LicenseType: "RN",
		Specialties: []string{"pediatric", "respiratory"},
	}
	rec := scoreCandidate(PatientContext{Age: "8"}, peds)
	assert.Equal(t, 70.0, rec.MatchScore)
	assert.Contains(t, rec.KeyStrengths, "Pediatric specialist")

	// Non-numeric age applies no age bonus.
	rec = scoreCandidate(PatientContext{Age: "unknown"}, peds)
	assert.Equal(t, 50.0, rec.MatchScore)
}

func TestFallbackRecommendationsSortAndTruncate(t *testing.T) {
	r := newTestRoster(t)
	pc := PatientContext{PrimaryDiagnosis: "post-surgical wound", TypeOfNursingCare: "wound care"}

	recs := fallbackRecommendations(pc, r.Profiles(), 3)
	require.Len(t, recs, 3)
	for i := 1; i < len(recs); i++ {
		assert.GreaterOrEqual(t, recs[i-1].MatchScore, recs[i].MatchScore)
	}
	assert.Equal(t, "N002", recs[0].Nurse.NurseID)
	assert.Equal(t, []string{"LLM analysis unavailable - enhanced matching used"}, recs[0].PotentialConcerns)
}

type failingGenerator struct{}

func (failingGenerator) Generate(context.Context, string) (string, error) {
	return "", errors.New("model offline")
}

type cannedGenerator struct{ text string }

func (g cannedGenerator) Generate(context.Context, string) (string, error) {
	return g.text, nil
}

func TestRecommendFallsBackWhenModelFails(t *testing.T) {
	r := newTestRoster(t)
	m := NewMatcher(r, failingGenerator{}, zaptest.NewLogger(t))

	pc := PatientContext{
		PrimaryDiagnosis:     "Tracheostomy care",
		SkilledNursingNeeded: "Tracheostomy care, ventilator management",
		TypeOfNursingCare:    "pediatric respiratory care",
		Age:                  "8",
	}
	result := m.Recommend(context.Background(), pc, 3)

	require.True(t, result.Success)
	require.NotEmpty(t, result.Recommendations)
	assert.Equal(t, 6, result.TotalCandidatesReviewed)
	assert.NotEmpty(t, result.LastUpdated)
	// Ventilator management is RN-only.
	for _, rec := range result.Recommendations {
		assert.Equal(t, "RN", rec.Nurse.LicenseType)
	}
}

func TestRecommendUsesModelRankingWhenValid(t *testing.T) {
	r := newTestRoster(t)
	m := NewMatcher(r, cannedGenerator{text: `{
		"recommendations": [
			{"nurse_id": "N002", "match_score": 91, "rationale": "Wound expertise",
			 "key_strengths": ["WOCN certified"], "potential_concerns": [],
			 "availability_match": "Available weekdays", "distance_estimate": "Unlimited radius"},
			{"nurse_id": "N999", "match_score": 88, "rationale": "does not exist"}
		]
	}`}, zaptest.NewLogger(t))

	pc := PatientContext{PrimaryDiagnosis: "post-surgical wound", TypeOfNursingCare: "wound care"}
	result := m.Recommend(context.Background(), pc, 3)

	require.True(t, result.Success)
	// The unknown nurse is skipped, not fatal.
	require.Len(t, result.Recommendations, 1)
	assert.Equal(t, "N002", result.Recommendations[0].Nurse.NurseID)
	assert.Equal(t, 91.0, result.Recommendations[0].MatchScore)
}

func TestRecommendEmptyRosterIsStructuredFailure(t *testing.T) {
	r := NewRoster(zaptest.NewLogger(t))
	m := NewMatcher(r, nil, zaptest.NewLogger(t))

	result := m.Recommend(context.Background(), PatientContext{PrimaryDiagnosis: "CHF"}, 5)
	require.False(t, result.Success)
	assert.Equal(t, "No suitable nurses found for this patient's needs", result.Message)
	assert.Len(t, result.RemediationNotes, 4)
	assert.Empty(t, result.Recommendations)
}

func nurseIDs(profiles []NurseProfile) []string {
	ids := make([]string, 0, len(profiles))
	for _, p := range profiles {
		ids = append(ids, p.NurseID)
	}
	return ids
}
