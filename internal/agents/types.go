// Package agents implements the four discharge coordination processors
// (nursing, durable medical equipment, pharmacy, state/insurance). All four
// share one Processor parameterized by an agent-specific prompt template,
// fallback payload, and hand-off form builder. LLM failure never propagates
// to the caller; it degrades to the documented fallback.
package agents

import (
	"errors"
	"fmt"
	"strings"

	"github.com/discharge-coordinator/internal/nursematch"
)

// Type identifies a coordination agent.
type Type string

const (
	Nursing  Type = "nursing"
	DME      Type = "dme"
	Pharmacy Type = "pharmacy"
	State    Type = "state"
)

// ErrUnknownAgent is returned when a name does not map to a known agent.
var ErrUnknownAgent = errors.New("agents: unknown agent")

// All returns the known agent types in canonical order.
func All() []Type {
	return []Type{Nursing, DME, Pharmacy, State}
}

// Parse maps a case-insensitive agent name to its Type.
func Parse(s string) (Type, error) {
	switch Type(strings.ToLower(strings.TrimSpace(s))) {
	case Nursing:
		return Nursing, nil
	case DME:
		return DME, nil
	case Pharmacy:
		return Pharmacy, nil
	case State:
		return State, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAgent, s)
	}
}

// FormField is one field of a hand-off form.
type FormField struct {
	Name     string      `json:"name"`
	Type     string      `json:"type"` // text, textarea, select, date
	Label    string      `json:"label"`
	Value    interface{} `json:"value"`
	Required bool        `json:"required"`
	Options  []string    `json:"options,omitempty"`
}

// HandoffForm is the pre-filled document sent to an external partner
// organization. Field values are derived from the patient case, never from
// LLM output, so the form is populated even when the model fails entirely.
type HandoffForm struct {
	FormID    string      `json:"form_id"`
	Title     string      `json:"title"`
	Fields    []FormField `json:"fields"`
	Recipient string      `json:"recipient"`

	// Populated by the nursing agent only.
	NurseRecommendations *nursematch.MatchResult `json:"nurse_recommendations,omitempty"`
}

// Field returns the named form field, or nil.
func (f *HandoffForm) Field(name string) *FormField {
	for i := range f.Fields {
		if f.Fields[i].Name == name {
			return &f.Fields[i]
		}
	}
	return nil
}

// Response is one agent's output for a case.
type Response struct {
	AgentType         Type                   `json:"agent_type"`
	PatientID         string                 `json:"patient_id"`
	StructuredData    map[string]interface{} `json:"structured_data"`
	Form              *HandoffForm           `json:"form_data"`
	Recommendations   []string               `json:"recommendations"`
	NextSteps         []string               `json:"next_steps"`
	ExternalReferrals []string               `json:"external_referrals"`
}
