package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/discharge-coordinator/internal/agents"
	"github.com/discharge-coordinator/internal/jsonx"
	"github.com/discharge-coordinator/internal/nursematch"
	"github.com/discharge-coordinator/internal/patient"
)

// caseRequest is the body of every per-case endpoint. patient_id may appear
// at the top level or inside caregiver_input; they are reconciled before use.
type caseRequest struct {
	PatientID      string                 `json:"patient_id"`
	CaregiverInput patient.CaregiverInput `json:"caregiver_input"`
}

func (cr *caseRequest) normalize() error {
	if cr.PatientID == "" {
		cr.PatientID = cr.CaregiverInput.PatientID
	}
	cr.CaregiverInput.PatientID = cr.PatientID
	return cr.CaregiverInput.Validate()
}

type nurseRequest struct {
	PatientID string `json:"patient_id"`
	TopN      int    `json:"top_n"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := jsonx.Marshal(v)
	if err != nil {
		s.logger.Error("response encoding failed", zap.Error(err))
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "could not read request body")
		return false
	}
	if err := jsonx.Unmarshal(body, v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// lookupCase resolves the request's patient, writing the HTTP error itself
// when resolution fails.
func (s *Server) lookupCase(w http.ResponseWriter, req *caseRequest) (*patient.PatientCase, bool) {
	if err := req.normalize(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	c, err := s.deps.Patients.Get(req.PatientID)
	if err != nil {
		if errors.Is(err, patient.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, fmt.Sprintf("patient %s not found", req.PatientID))
		} else {
			s.writeError(w, http.StatusInternalServerError, "patient lookup failed")
		}
		return nil, false
	}
	return c, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "healthy",
		"service":         "discharge-coordinator",
		"version":         serviceVersion,
		"llm_provider":    s.deps.Provider,
		"patients_loaded": s.deps.Patients.Len(),
		"nurses_loaded":   s.deps.Roster.Len(),
	})
}

// patientSummary is the roster-view subset of a case.
type patientSummary struct {
	PatientID               string `json:"patient_id"`
	Name                    string `json:"name"`
	PrimaryDiagnosis        string `json:"primary_diagnosis"`
	SkilledNursingNeeded    string `json:"skilled_nursing_needed"`
	EquipmentNeeded         string `json:"equipment_needed"`
	Medication              string `json:"medication"`
	InsuranceCoverageStatus string `json:"insurance_coverage_status"`
}

func (s *Server) handleListPatients(w http.ResponseWriter, r *http.Request) {
	cases := s.deps.Patients.List()
	out := make([]patientSummary, 0, len(cases))
	for _, c := range cases {
		out = append(out, patientSummary{
			PatientID:               c.PatientID,
			Name:                    c.Name,
			PrimaryDiagnosis:        c.PrimaryDiagnosis,
			SkilledNursingNeeded:    c.SkilledNursingNeeded,
			EquipmentNeeded:         c.EquipmentNeeded,
			Medication:              c.Medication,
			InsuranceCoverageStatus: c.InsuranceCoverageStatus,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"patients": out,
		"total":    len(out),
	})
}

func (s *Server) handleRefreshData(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.ReloadData(); err != nil {
		s.logger.Error("patient data refresh failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "success",
		"message":  "Patient data refreshed",
		"snapshot": s.deps.Patients.Summary(),
	})
}

func (s *Server) handleRefreshRoster(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.ReloadRoster(); err != nil {
		s.logger.Error("nurse roster refresh failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "success",
		"message":       "Nurse roster refreshed",
		"nurses_loaded": s.deps.Roster.Len(),
	})
}

func (s *Server) handleRoutePatient(w http.ResponseWriter, r *http.Request) {
	var req caseRequest
	if !s.decode(w, r, &req) {
		return
	}
	c, ok := s.lookupCase(w, &req)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, s.deps.Router.Route(r.Context(), c, &req.CaregiverInput))
}

func (s *Server) handleAgent(agent agents.Type) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req caseRequest
		if !s.decode(w, r, &req) {
			return
		}
		c, ok := s.lookupCase(w, &req)
		if !ok {
			return
		}
		resp, err := s.deps.Processor.Process(r.Context(), agent, c, &req.CaregiverInput)
		if err != nil {
			s.logger.Error("agent processing failed",
				zap.String("agent", string(agent)), zap.Error(err))
			s.writeError(w, http.StatusInternalServerError, "agent processing failed")
			return
		}
		s.writeJSON(w, http.StatusOK, resp)
	}
}

// handleCompleteCase routes the case, then runs the recommended processors
// concurrently over the shared read-only case. Responses are emitted in the
// routing decision's order regardless of completion order, and one agent's
// failure never blocks the others.
func (s *Server) handleCompleteCase(w http.ResponseWriter, r *http.Request) {
	var req caseRequest
	if !s.decode(w, r, &req) {
		return
	}
	c, ok := s.lookupCase(w, &req)
	if !ok {
		return
	}

	decision := s.deps.Router.Route(r.Context(), c, &req.CaregiverInput)

	results := make([]*agents.Response, len(decision.RecommendedAgents))
	var wg sync.WaitGroup
	for i, agent := range decision.RecommendedAgents {
		wg.Add(1)
		go func(i int, agent agents.Type) {
			defer wg.Done()
			resp, err := s.deps.Processor.Process(r.Context(), agent, c, &req.CaregiverInput)
			if err != nil {
				s.logger.Error("agent processing failed in complete case",
					zap.String("agent", string(agent)),
					zap.String("patient_id", c.PatientID),
					zap.Error(err))
				return
			}
			results[i] = resp
		}(i, agent)
	}
	wg.Wait()

	responses := make([]*agents.Response, 0, len(results))
	for _, resp := range results {
		if resp != nil {
			responses = append(responses, resp)
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"routing_decision":  decision,
		"agent_responses":   responses,
		"status":            "success",
		"processed_agents":  len(responses),
		"total_recommended": len(decision.RecommendedAgents),
	})
}

func (s *Server) handleRecommendNurses(w http.ResponseWriter, r *http.Request) {
	var req nurseRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.PatientID == "" {
		s.writeError(w, http.StatusBadRequest, "patient_id is required")
		return
	}
	c, err := s.deps.Patients.Get(req.PatientID)
	if err != nil {
		if errors.Is(err, patient.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, fmt.Sprintf("patient %s not found", req.PatientID))
		} else {
			s.writeError(w, http.StatusInternalServerError, "patient lookup failed")
		}
		return
	}

	pc := nursematch.PatientContext{
		Name:                    c.Name,
		Age:                     c.Age,
		PrimaryDiagnosis:        c.PrimaryDiagnosis,
		SecondaryDiagnoses:      c.SecondaryDiagnoses,
		SkilledNursingNeeded:    c.SkilledNursingNeeded,
		TypeOfNursingCare:       c.TypeOfNursingCare,
		EquipmentNeeded:         c.EquipmentNeeded,
		Medication:              c.Medication,
		Address:                 c.Address,
		SpecialInstructions:     c.SpecialInstructions,
		PreferredLanguage:       c.PreferredLanguage,
		InsuranceCoverageStatus: c.InsuranceCoverageStatus,
	}
	s.writeJSON(w, http.StatusOK, s.deps.Matcher.Recommend(r.Context(), pc, req.TopN))
}
