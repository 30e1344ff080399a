package routing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/discharge-coordinator/internal/agents"
	"github.com/discharge-coordinator/internal/patient"
)

type failingGenerator struct{}

func (failingGenerator) Generate(context.Context, string) (string, error) {
	return "", errors.New("model offline")
}

type cannedGenerator struct{ text string }

func (g cannedGenerator) Generate(context.Context, string) (string, error) {
	return g.text, nil
}

func routeCase() *patient.PatientCase {
	return &patient.PatientCase{
		PatientID:        "P100",
		Name:             "Elena Ruiz",
		PrimaryDiagnosis: "Congestive heart failure",
	}
}

func TestFallbackDeterministic(t *testing.T) {
	c := routeCase()
	c.EquipmentNeeded = "Wheelchair"
	c.Medication = "Furosemide"
	in := &patient.CaregiverInput{PatientID: "P100", UrgencyLevel: "medium", PrimaryConcern: "wound check"}

	first := FallbackDecision(c, in)
	for i := 0; i < 5; i++ {
		again := FallbackDecision(c, in)
		assert.Equal(t, first, again)
	}
}

func TestFallbackUrgencyPriorities(t *testing.T) {
	c := routeCase()
	for urgency, want := range map[string]int{"high": 8, "medium": 5, "low": 3} {
		in := &patient.CaregiverInput{UrgencyLevel: urgency, PrimaryConcern: "general coordination"}
		d := FallbackDecision(c, in)
		assert.Equal(t, want, d.PriorityScore, "urgency %s", urgency)
		assert.Equal(t, "24-48 hours post-discharge", d.EstimatedTimeline)
	}
}

func TestFallbackDefaultsToNursing(t *testing.T) {
	in := &patient.CaregiverInput{UrgencyLevel: "low", PrimaryConcern: "general coordination"}
	d := FallbackDecision(routeCase(), in)

	assert.Equal(t, []agents.Type{agents.Nursing}, d.RecommendedAgents)
	assert.Contains(t, d.Reasoning, "congestive heart failure")
	assert.Contains(t, d.Reasoning, "discharge coordination and home health setup")
}

func TestFallbackEquipmentRoutesDME(t *testing.T) {
	c := routeCase()
	c.EquipmentNeeded = "Oxygen Concentrator"
	in := &patient.CaregiverInput{UrgencyLevel: "low", PrimaryConcern: "equipment setup"}

	d := FallbackDecision(c, in)
	assert.Contains(t, d.RecommendedAgents, agents.DME)
	assert.Contains(t, d.Reasoning, "equipment delivery coordination for oxygen concentrator before discharge")
}

func TestFallbackNursingNotDuplicated(t *testing.T) {
	c := routeCase()
	c.SkilledNursingNeeded = "Yes"
	in := &patient.CaregiverInput{UrgencyLevel: "high", PrimaryConcern: "needs wound check before discharge"}

	d := FallbackDecision(c, in)
	assert.Equal(t, []agents.Type{agents.Nursing}, d.RecommendedAgents)
	// Both triggers contribute reasoning even though the agent appears once.
	assert.Contains(t, d.Reasoning, "wound management")
	assert.Contains(t, d.Reasoning, "home health referral setup")
}

func TestFallbackInsuranceStatusRoutesState(t *testing.T) {
	for _, status := range []string{"pending", "denied", "unknown"} {
		c := routeCase()
		c.InsuranceCoverageStatus = status
		in := &patient.CaregiverInput{UrgencyLevel: "low", PrimaryConcern: "coordination"}

		d := FallbackDecision(c, in)
		assert.Contains(t, d.RecommendedAgents, agents.State, "status %s", status)
	}

	// Active coverage routes state only on concern keywords.
	c := routeCase()
	c.InsuranceCoverageStatus = "active"
	in := &patient.CaregiverInput{UrgencyLevel: "low", PrimaryConcern: "medicaid waiver question"}
	d := FallbackDecision(c, in)
	assert.Contains(t, d.RecommendedAgents, agents.State)
	assert.Contains(t, d.Reasoning, "prior authorization processing")
}

func TestFallbackMedicationConcernRoutesPharmacy(t *testing.T) {
	c := routeCase()
	in := &patient.CaregiverInput{UrgencyLevel: "low", PrimaryConcern: "medication pickup logistics"}

	d := FallbackDecision(c, in)
	assert.Contains(t, d.RecommendedAgents, agents.Pharmacy)
	assert.Contains(t, d.Reasoning, "medication handoff logistics for discharge")
}

func TestFallbackThreeReasonJoinGrammar(t *testing.T) {
	c := routeCase()
	c.EquipmentNeeded = "walker"
	c.Medication = "warfarin"
	c.InsuranceCoverageStatus = "pending"
	in := &patient.CaregiverInput{UrgencyLevel: "medium", PrimaryConcern: "coordination"}

	d := FallbackDecision(c, in)
	assert.Contains(t, d.Reasoning, "Requires coordination of ")
	assert.Contains(t, d.Reasoning, ", and ")
	assert.Contains(t, d.Reasoning, "seamless hospital-to-home transition logistics")
}

func TestRouteUsesModelDecision(t *testing.T) {
	r := NewRouter(cannedGenerator{text: `{
		"recommended_agents": ["NURSING", "dme"],
		"reasoning": "equipment delivery and referral setup",
		"priority_score": 7,
		"estimated_timeline": "before discharge"
	}`}, zaptest.NewLogger(t))

	in := &patient.CaregiverInput{UrgencyLevel: "low", PrimaryConcern: "coordination"}
	d := r.Route(context.Background(), routeCase(), in)

	assert.Equal(t, []agents.Type{agents.Nursing, agents.DME}, d.RecommendedAgents)
	assert.Equal(t, 7, d.PriorityScore)
	assert.Equal(t, "before discharge", d.EstimatedTimeline)
}

func TestRouteFallsBackOnOutOfRangePriority(t *testing.T) {
	r := NewRouter(cannedGenerator{text: `{
		"recommended_agents": ["dme"],
		"reasoning": "ok",
		"priority_score": 42,
		"estimated_timeline": "before discharge"
	}`}, zaptest.NewLogger(t))

	in := &patient.CaregiverInput{UrgencyLevel: "medium", PrimaryConcern: "coordination"}
	d := r.Route(context.Background(), routeCase(), in)
	fallback := FallbackDecision(routeCase(), in)

	assert.Equal(t, fallback.RecommendedAgents, d.RecommendedAgents)
	assert.Equal(t, 5, d.PriorityScore)
}

func TestRouteFallsBackOnUnknownAgentName(t *testing.T) {
	r := NewRouter(cannedGenerator{text: `{
		"recommended_agents": ["nursing", "billing"],
		"reasoning": "ok",
		"priority_score": 5,
		"estimated_timeline": "soon"
	}`}, zaptest.NewLogger(t))

	in := &patient.CaregiverInput{UrgencyLevel: "high", PrimaryConcern: "coordination"}
	d := r.Route(context.Background(), routeCase(), in)

	// One unmappable agent rejects the whole model decision.
	assert.Equal(t, 8, d.PriorityScore)
	assert.Equal(t, "24-48 hours post-discharge", d.EstimatedTimeline)
}

func TestRouteFallsBackOnMissingField(t *testing.T) {
	r := NewRouter(cannedGenerator{text: `{
		"recommended_agents": ["nursing"],
		"reasoning": "ok",
		"priority_score": 5
	}`}, zaptest.NewLogger(t))

	d := r.Route(context.Background(), routeCase(), &patient.CaregiverInput{UrgencyLevel: "medium", PrimaryConcern: "x"})
	assert.Equal(t, 5, d.PriorityScore)
	assert.Equal(t, "24-48 hours post-discharge", d.EstimatedTimeline)
}

func TestRouteFallsBackOnModelError(t *testing.T) {
	r := NewRouter(failingGenerator{}, zaptest.NewLogger(t))
	c := routeCase()
	c.Medication = "warfarin"

	d := r.Route(context.Background(), c, &patient.CaregiverInput{UrgencyLevel: "low", PrimaryConcern: "x"})
	require.NotEmpty(t, d.RecommendedAgents)
	assert.Contains(t, d.RecommendedAgents, agents.Pharmacy)
}
