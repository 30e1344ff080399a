package patient

import (
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Store holds the loaded patient cases. Reloads replace the whole snapshot
// behind a single atomic pointer swap, so readers always see either the old
// complete collection or the new one, never a partial mix.
type Store struct {
	snapshot atomic.Pointer[snapshot]
	logger   *zap.Logger
}

type snapshot struct {
	cases    map[string]*PatientCase
	order    []string // insertion order, for stable listings
	loadedAt time.Time
	source   string
}

// NewStore creates an empty store.
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{logger: logger.Named("patients")}
	s.snapshot.Store(&snapshot{cases: map[string]*PatientCase{}})
	return s
}

// Replace swaps in a new complete collection. Cases are normalized here so
// downstream code never re-trims.
func (s *Store) Replace(cases []*PatientCase, source string) {
	m := make(map[string]*PatientCase, len(cases))
	order := make([]string, 0, len(cases))
	for _, c := range cases {
		c.Normalize()
		if c.PatientID == "" {
			continue
		}
		if _, dup := m[c.PatientID]; !dup {
			order = append(order, c.PatientID)
		}
		m[c.PatientID] = c
	}
	s.snapshot.Store(&snapshot{
		cases:    m,
		order:    order,
		loadedAt: time.Now(),
		source:   source,
	})
	s.logger.Info("patient cache replaced",
		zap.Int("patients", len(m)),
		zap.String("source", source))
}

// Get returns the case for id, or ErrNotFound.
func (s *Store) Get(id string) (*PatientCase, error) {
	snap := s.snapshot.Load()
	c, ok := snap.cases[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c, nil
}

// List returns all cases in load order.
func (s *Store) List() []*PatientCase {
	snap := s.snapshot.Load()
	out := make([]*PatientCase, 0, len(snap.order))
	for _, id := range snap.order {
		out = append(out, snap.cases[id])
	}
	return out
}

// Len returns the number of loaded cases.
func (s *Store) Len() int {
	return len(s.snapshot.Load().cases)
}

// Summary describes the current snapshot for status endpoints.
type Summary struct {
	TotalPatients int       `json:"total_patients"`
	Source        string    `json:"source,omitempty"`
	LoadedAt      time.Time `json:"loaded_at,omitempty"`
}

// Summary returns snapshot metadata.
func (s *Store) Summary() Summary {
	snap := s.snapshot.Load()
	return Summary{
		TotalPatients: len(snap.cases),
		Source:        snap.source,
		LoadedAt:      snap.loadedAt,
	}
}
