// Package routing decides which coordination agents should handle a patient
// discharge. The primary path asks the model for a routing decision; any
// failure in that path, from transport errors to a single unmappable agent
// name, swaps in the deterministic rule engine so a decision is always made.
package routing

import (
	"context"
	"fmt"

	"github.com/valyala/bytebufferpool"
	"go.uber.org/zap"

	"github.com/discharge-coordinator/internal/agents"
	"github.com/discharge-coordinator/internal/llm"
	"github.com/discharge-coordinator/internal/patient"
)

// Decision names the agents that should process a case, with the rationale.
type Decision struct {
	PatientID         string        `json:"patient_id"`
	RecommendedAgents []agents.Type `json:"recommended_agents"`
	Reasoning         string        `json:"reasoning"`
	PriorityScore     int           `json:"priority_score"`
	EstimatedTimeline string        `json:"estimated_timeline"`
}

// Generator produces free-form model output for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Router makes routing decisions.
type Router struct {
	gateway Generator
	logger  *zap.Logger
}

// NewRouter wires a router. gateway may be nil, in which case every decision
// comes from the rule engine.
func NewRouter(gateway Generator, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{gateway: gateway, logger: logger.Named("routing")}
}

// Route decides which agents handle the case. It never returns an error:
// model failure, malformed output, a missing response field, or an unknown
// agent name all fall back to rule-based routing.
func (r *Router) Route(ctx context.Context, c *patient.PatientCase, in *patient.CaregiverInput) *Decision {
	if r.gateway == nil {
		return FallbackDecision(c, in)
	}

	raw, err := r.gateway.Generate(ctx, buildRoutingPrompt(c, in))
	if err != nil {
		r.logger.Warn("routing model call failed, using rule-based routing",
			zap.String("patient_id", c.PatientID), zap.Error(err))
		return FallbackDecision(c, in)
	}

	decision, err := parseDecision(raw, c.PatientID)
	if err != nil {
		r.logger.Warn("routing response unusable, using rule-based routing",
			zap.String("patient_id", c.PatientID), zap.Error(err))
		return FallbackDecision(c, in)
	}

	r.logger.Info("model routing decision",
		zap.String("patient_id", c.PatientID),
		zap.Int("agents", len(decision.RecommendedAgents)),
		zap.Int("priority", decision.PriorityScore))
	return decision
}

// parseDecision validates the model's routing object. All four fields must be
// present and every agent name must map; a partially valid decision is worse
// than the rule engine, so any gap rejects the whole response.
func parseDecision(raw, patientID string) (*Decision, error) {
	obj, err := llm.ExtractJSON(raw)
	if err != nil {
		return nil, err
	}

	for _, key := range []string{"recommended_agents", "reasoning", "priority_score", "estimated_timeline"} {
		if _, ok := obj[key]; !ok {
			return nil, fmt.Errorf("%w: missing %s", llm.ErrMalformedResponse, key)
		}
	}

	names := llm.StringSlice(obj, "recommended_agents")
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: empty recommended_agents", llm.ErrMalformedResponse)
	}
	recommended := make([]agents.Type, 0, len(names))
	for _, name := range names {
		agent, err := agents.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", llm.ErrMalformedResponse, err)
		}
		recommended = append(recommended, agent)
	}

	priority := int(llm.NumberField(obj, "priority_score", 0))
	if priority < 1 || priority > 10 {
		return nil, fmt.Errorf("%w: priority_score %d outside 1-10", llm.ErrMalformedResponse, priority)
	}

	return &Decision{
		PatientID:         patientID,
		RecommendedAgents: recommended,
		Reasoning:         llm.StringField(obj, "reasoning", ""),
		PriorityScore:     priority,
		EstimatedTimeline: llm.StringField(obj, "estimated_timeline", ""),
	}, nil
}

func buildRoutingPrompt(c *patient.PatientCase, in *patient.CaregiverInput) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	fmt.Fprintf(buf, `You are a DISCHARGE PLANNING coordinator AI. Your ONLY role is coordinating the logistics of transitioning patients from hospital to home/community care.

CRITICAL: Focus ONLY on discharge logistics and coordination - NOT ongoing clinical management.

Patient Discharge Profile:
- ID: %s
- Name: %s
- Primary Diagnosis: %s
- Discharge Date: %s
- Insurance Status: %s

DISCHARGE COORDINATION NEEDS:
Home Health Setup:
- Skilled Nursing Required: %s
- Visit Schedule: %s
- Care Coordination: %s

Equipment Delivery:
- Equipment for Home: %s
- Delivery Timeline: %s

Medication Handoff:
- Discharge Medication: %s
- Prescriber: %s

Discharge Planner Input: %s
Urgency: %s

ROUTING DECISION CRITERIA (Discharge Logistics Only):
- NURSING: Home health referral, 485 plan setup, discharge education coordination
- DME: Equipment delivery scheduling, insurance authorization, home setup coordination
- PHARMACY: eRx handoff, prescription transfer, pickup/delivery coordination
- STATE: Prior authorization, insurance verification, Medicaid coordination

FOCUS ON DISCHARGE LOGISTICS ONLY: equipment delivery coordination, home health
referral setup, prescription transfer logistics, insurance authorization
processing, discharge education scheduling, follow-up appointment coordination.

DO NOT MENTION: ongoing clinical monitoring, weekly vital signs, IV
administration schedules, wound care protocols, medication titration, clinical
assessments.

IMPORTANT: Respond ONLY with a valid JSON object focused on DISCHARGE COORDINATION:
{
    "recommended_agents": ["nursing", "dme", "pharmacy", "state"],
    "reasoning": "Discharge coordination explanation focusing ONLY on logistics: equipment delivery, referral setup, prescription handoff, and authorization processing",
    "priority_score": 7,
    "estimated_timeline": "before discharge"
}

Focus ONLY on discharge logistics coordination, NOT clinical care management.`,
		c.PatientID, c.Name,
		patient.OrNotSpecified(c.PrimaryDiagnosis),
		patient.OrDefault(c.DischargeDate, "Pending"),
		patient.OrDefault(c.InsuranceCoverageStatus, "Unknown"),
		patient.OrNotSpecified(c.SkilledNursingNeeded),
		patient.OrNotSpecified(c.NursingVisitFrequency),
		patient.OrNotSpecified(c.TypeOfNursingCare),
		patient.OrDefault(c.EquipmentNeeded, "None"),
		patient.OrDefault(c.EquipmentDeliveryDate, "Not scheduled"),
		patient.OrDefault(c.Medication, "None"),
		patient.OrNotSpecified(c.PrescriberName),
		in.PrimaryConcern, in.UrgencyLevel)

	return buf.String()
}
