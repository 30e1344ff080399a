package agents

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/discharge-coordinator/internal/llm"
	"github.com/discharge-coordinator/internal/nursematch"
	"github.com/discharge-coordinator/internal/patient"
)

const nurseRecommendationsTopN = 5

// Generator produces free-form model output for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// NurseMatcher supplies ranked nurse recommendations for a patient.
type NurseMatcher interface {
	Recommend(ctx context.Context, pc nursematch.PatientContext, topN int) *nursematch.MatchResult
}

// payload is the model-derived (or fallback) portion of an agent response.
// The hand-off form is built separately from case fields.
type payload struct {
	structured        map[string]interface{}
	recommendations   []string
	nextSteps         []string
	externalReferrals []string
}

// variant is the per-agent behavior: how to prompt the model, what to answer
// when the model fails, and how to fill the partner form.
type variant struct {
	buildPrompt func(c *patient.PatientCase, in *patient.CaregiverInput) string
	fallback    func(c *patient.PatientCase) payload
	buildForm   func(c *patient.PatientCase) *HandoffForm
}

// Processor runs a patient case through any of the coordination agents.
type Processor struct {
	gateway  Generator
	matcher  NurseMatcher
	logger   *zap.Logger
	variants map[Type]variant
}

// New wires a processor. gateway and matcher may each be nil: a nil gateway
// means every run uses the agent's fallback payload, and a nil matcher means
// nursing forms carry no nurse recommendations.
func New(gateway Generator, matcher NurseMatcher, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		gateway: gateway,
		matcher: matcher,
		logger:  logger.Named("agents"),
		variants: map[Type]variant{
			Nursing:  nursingVariant(),
			DME:      dmeVariant(),
			Pharmacy: pharmacyVariant(),
			State:    stateVariant(),
		},
	}
}

// Process runs one agent over the case. The only error is ErrUnknownAgent;
// model failure of any kind degrades to the agent's fallback payload, and the
// hand-off form is always populated from case fields.
func (p *Processor) Process(ctx context.Context, agent Type, c *patient.PatientCase, in *patient.CaregiverInput) (*Response, error) {
	v, ok := p.variants[agent]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAgent, agent)
	}

	pl := p.generatePayload(ctx, agent, v, c, in)
	form := v.buildForm(c)

	if agent == Nursing && p.matcher != nil {
		form.NurseRecommendations = p.matcher.Recommend(ctx, matchContext(c, in), nurseRecommendationsTopN)
	}

	return &Response{
		AgentType:         agent,
		PatientID:         c.PatientID,
		StructuredData:    pl.structured,
		Form:              form,
		Recommendations:   pl.recommendations,
		NextSteps:         pl.nextSteps,
		ExternalReferrals: pl.externalReferrals,
	}, nil
}

func (p *Processor) generatePayload(ctx context.Context, agent Type, v variant, c *patient.PatientCase, in *patient.CaregiverInput) payload {
	if p.gateway == nil {
		return v.fallback(c)
	}

	raw, err := p.gateway.Generate(ctx, v.buildPrompt(c, in))
	if err != nil {
		p.logger.Warn("agent model call failed, using fallback",
			zap.String("agent", string(agent)),
			zap.String("patient_id", c.PatientID),
			zap.Error(err))
		return v.fallback(c)
	}

	pl, err := parsePayload(raw)
	if err != nil {
		p.logger.Warn("agent response unusable, using fallback",
			zap.String("agent", string(agent)),
			zap.String("patient_id", c.PatientID),
			zap.Error(err))
		return v.fallback(c)
	}
	return pl
}

// parsePayload extracts the four response sections. A response missing
// structured_data is rejected so a half-formed answer never replaces the
// fallback payload.
func parsePayload(raw string) (payload, error) {
	obj, err := llm.ExtractJSON(raw)
	if err != nil {
		return payload{}, err
	}

	structured, ok := obj["structured_data"].(map[string]interface{})
	if !ok {
		return payload{}, fmt.Errorf("%w: missing structured_data object", llm.ErrMalformedResponse)
	}

	return payload{
		structured:        structured,
		recommendations:   llm.StringSlice(obj, "recommendations"),
		nextSteps:         llm.StringSlice(obj, "next_steps"),
		externalReferrals: llm.StringSlice(obj, "external_referrals"),
	}, nil
}

// matchContext projects the case onto the fields the nurse matcher consults.
// Absent fields stay empty here; the matcher omits them from retrieval.
func matchContext(c *patient.PatientCase, in *patient.CaregiverInput) nursematch.PatientContext {
	return nursematch.PatientContext{
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
}
