package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/discharge-coordinator/internal/agents"
	"github.com/discharge-coordinator/internal/config"
	"github.com/discharge-coordinator/internal/jsonx"
	"github.com/discharge-coordinator/internal/nursematch"
	"github.com/discharge-coordinator/internal/patient"
	"github.com/discharge-coordinator/internal/routing"
)

type offlineGenerator struct{}

func (offlineGenerator) Generate(context.Context, string) (string, error) {
	return "", errors.New("model offline")
}

func testServer(t *testing.T) *Server {
	t.Helper()
	logger := zaptest.NewLogger(t)

	store := patient.NewStore(logger)
	store.Replace([]*patient.PatientCase{
		{
			PatientID:               "P100",
			Name:                    "Elena Ruiz",
			PrimaryDiagnosis:        "Congestive heart failure",
			SkilledNursingNeeded:    "Yes",
			TypeOfNursingCare:       "cardiac care",
			EquipmentNeeded:         "wheelchair",
			Medication:              "Furosemide",
			InsuranceCoverageStatus: "pending",
		},
		{
			PatientID:        "P101",
			Name:             "Jo Park",
			PrimaryDiagnosis: "Hip replacement recovery",
		},
	}, "test")

	roster := nursematch.NewRoster(logger)
	require.NoError(t, roster.Replace([][]string{
		{"nurse_id", "name", "license_type", "certifications", "specialties",
			"years_experience", "languages", "service_area_zip", "coverage_radius_miles",
			"shift_preferences", "availability_slots", "employment_status",
			"payer_enrollment", "covid_vaccination_status", "hourly_rate", "profile_summary"},
		{"N001", "Maria Lopez", "RN", "CCRN", "cardiac, critical care", "12",
			"English, Spanish", "10001", "25", "day", "Mon-Fri",
			"active", "Medicare", "vaccinated", "85.00", "Cardiac care veteran"},
	}, "test"))
	t.Cleanup(roster.Close)

	matcher := nursematch.NewMatcher(roster, nil, logger)
	deps := Deps{
		Patients:     store,
		Roster:       roster,
		Router:       routing.NewRouter(offlineGenerator{}, logger),
		Processor:    agents.New(offlineGenerator{}, matcher, logger),
		Matcher:      matcher,
		Provider:     "none",
		ReloadData:   func() error { return nil },
		ReloadRoster: func() error { return errors.New("roster file missing") },
	}
	return New(config.Default(), deps, logger)
}

func do(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reqBody *strings.Reader
	if body == "" {
		reqBody = strings.NewReader("")
	} else {
		reqBody = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, jsonx.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestHealthEndpoint(t *testing.T) {
	s := testServer(t)
	rec, body := do(t, s, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "discharge-coordinator", body["service"])
	assert.Equal(t, float64(2), body["patients_loaded"])
	assert.Equal(t, float64(1), body["nurses_loaded"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestListPatients(t *testing.T) {
	s := testServer(t)
	rec, body := do(t, s, http.MethodGet, "/api/patients", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["total"])
	patients := body["patients"].([]interface{})
	first := patients[0].(map[string]interface{})
	assert.Equal(t, "P100", first["patient_id"])
	assert.Equal(t, "Congestive heart failure", first["primary_diagnosis"])
}

func TestRoutePatientUnknownID(t *testing.T) {
	s := testServer(t)
	rec, body := do(t, s, http.MethodPost, "/api/route-patient",
		`{"patient_id":"P999","caregiver_input":{"patient_id":"P999","urgency_level":"low","primary_concern":"x"}}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, body["error"], "P999")
}

func TestRoutePatientInvalidInput(t *testing.T) {
	s := testServer(t)
	rec, _ := do(t, s, http.MethodPost, "/api/route-patient",
		`{"patient_id":"P100","caregiver_input":{"urgency_level":"extreme","primary_concern":"x"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoutePatientFallbackDecision(t *testing.T) {
	s := testServer(t)
	rec, body := do(t, s, http.MethodPost, "/api/route-patient",
		`{"patient_id":"P100","caregiver_input":{"urgency_level":"high","primary_concern":"discharge coordination"}}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "P100", body["patient_id"])
	assert.Equal(t, float64(8), body["priority_score"])
	recommended := body["recommended_agents"].([]interface{})
	// Nursing (skilled nursing yes), DME (wheelchair), pharmacy (medication),
	// state (pending insurance).
	assert.Len(t, recommended, 4)
}

func TestProcessNursingAgent(t *testing.T) {
	s := testServer(t)
	rec, body := do(t, s, http.MethodPost, "/api/process-nursing-agent",
		`{"patient_id":"P100","caregiver_input":{"urgency_level":"medium","primary_concern":"home health setup"}}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nursing", body["agent_type"])
	form := body["form_data"].(map[string]interface{})
	assert.Equal(t, "nursing_P100", form["form_id"])

	fields := form["fields"].([]interface{})
	name := fields[0].(map[string]interface{})
	assert.Equal(t, "patient_name", name["name"])
	assert.Equal(t, "Elena Ruiz", name["value"])

	recs := form["nurse_recommendations"].(map[string]interface{})
	assert.Equal(t, true, recs["success"])
}

func TestProcessCompleteCasePreservesRoutingOrder(t *testing.T) {
	s := testServer(t)
	rec, body := do(t, s, http.MethodPost, "/api/process-complete-case",
		`{"patient_id":"P100","caregiver_input":{"urgency_level":"medium","primary_concern":"full coordination"}}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, float64(4), body["total_recommended"])
	assert.Equal(t, float64(4), body["processed_agents"])

	decision := body["routing_decision"].(map[string]interface{})
	recommended := decision["recommended_agents"].([]interface{})
	responses := body["agent_responses"].([]interface{})
	require.Len(t, responses, len(recommended))
	for i, resp := range responses {
		agent := resp.(map[string]interface{})["agent_type"]
		assert.Equal(t, recommended[i], agent, "position %d", i)
	}
}

func TestRecommendNurses(t *testing.T) {
	s := testServer(t)
	rec, body := do(t, s, http.MethodPost, "/api/recommend-nurses",
		`{"patient_id":"P100","top_n":3}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	recs := body["recommendations"].([]interface{})
	require.NotEmpty(t, recs)
	nurse := recs[0].(map[string]interface{})["nurse"].(map[string]interface{})
	assert.Equal(t, "N001", nurse["nurse_id"])
}

func TestRecommendNursesRequiresPatientID(t *testing.T) {
	s := testServer(t)
	rec, _ := do(t, s, http.MethodPost, "/api/recommend-nurses", `{"top_n":3}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshEndpoints(t *testing.T) {
	s := testServer(t)

	rec, body := do(t, s, http.MethodPost, "/api/refresh-data", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", body["status"])

	rec, body = do(t, s, http.MethodPost, "/api/refresh-roster", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, body["error"], "roster file missing")
}
