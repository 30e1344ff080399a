package nursematch

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Roster holds the loaded nurse profiles and their search index. Reloads
// build a complete replacement snapshot and publish it with a single atomic
// swap, so readers never observe a partially loaded roster.
type Roster struct {
	logger *zap.Logger
	snap   atomic.Pointer[rosterSnapshot]
}

type rosterSnapshot struct {
	profiles []NurseProfile
	index    bleve.Index
	loadedAt time.Time
	source   string
}

// NewRoster returns an empty roster. Load a file before matching.
func NewRoster(logger *zap.Logger) *Roster {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Roster{logger: logger.Named("roster")}
	r.snap.Store(&rosterSnapshot{})
	return r
}

// LoadFile replaces the roster from a CSV or XLSX file.
func (r *Roster) LoadFile(path string) error {
	var rows [][]string
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = readWorkbookRows(path)
	default:
		rows, err = readCSVRows(path)
	}
	if err != nil {
		return fmt.Errorf("load nurse roster %s: %w", path, err)
	}
	return r.Replace(rows, path)
}

// Replace parses raw rows (header first) and atomically swaps in the new
// snapshot. The previous snapshot stays valid for in-flight readers.
func (r *Roster) Replace(rows [][]string, source string) error {
	if len(rows) < 2 {
		return fmt.Errorf("nurse roster %s: no data rows", source)
	}

	cols := indexRosterColumns(rows[0])
	profiles := make([]NurseProfile, 0, len(rows)-1)
	for _, row := range rows[1:] {
		p, err := profileFromRow(row, cols)
		if err != nil {
			r.logger.Warn("skipping nurse profile row", zap.Error(err))
			continue
		}
		profiles = append(profiles, p)
	}
	if len(profiles) == 0 {
		return fmt.Errorf("nurse roster %s: no valid nurse profiles", source)
	}

	idx, err := buildIndex(profiles)
	if err != nil {
		return fmt.Errorf("index nurse roster: %w", err)
	}

	// The old snapshot is not closed here: in-flight searches may still
	// hold it. Memory-only indexes carry no OS resources, so the garbage
	// collector reclaims them once the last reader drops the snapshot.
	r.snap.Store(&rosterSnapshot{
		profiles: profiles,
		index:    idx,
		loadedAt: time.Now(),
		source:   source,
	})

	r.logger.Info("nurse roster loaded",
		zap.String("source", source),
		zap.Int("profiles", len(profiles)))
	return nil
}

// Profiles returns the current snapshot's profiles in roster order.
func (r *Roster) Profiles() []NurseProfile {
	return r.snap.Load().profiles
}

// Len reports how many profiles are loaded.
func (r *Roster) Len() int {
	return len(r.snap.Load().profiles)
}

// LoadedAt reports when the current snapshot was published; zero when the
// roster has never been loaded.
func (r *Roster) LoadedAt() time.Time {
	return r.snap.Load().loadedAt
}

// Search retrieves up to topK candidates for the query, most similar first.
// Ties break toward earlier roster positions so results are stable across
// calls. An empty query returns the first topK profiles in roster order.
func (r *Roster) Search(query string, topK int) []NurseProfile {
	snap := r.snap.Load()
	if len(snap.profiles) == 0 || topK <= 0 {
		return nil
	}
	if strings.TrimSpace(query) == "" {
		if topK > len(snap.profiles) {
			topK = len(snap.profiles)
		}
		out := make([]NurseProfile, topK)
		copy(out, snap.profiles[:topK])
		return out
	}

	mq := bleve.NewMatchQuery(query)
	req := bleve.NewSearchRequest(mq)
	req.Size = topK
	res, err := snap.index.Search(req)
	if err != nil {
		r.logger.Error("roster search failed", zap.Error(err))
		return nil
	}

	type hit struct {
		pos   int
		score float64
	}
	hits := make([]hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		pos, err := strconv.Atoi(h.ID)
		if err != nil || pos < 0 || pos >= len(snap.profiles) {
			continue
		}
		hits = append(hits, hit{pos: pos, score: h.Score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].pos < hits[j].pos
	})

	out := make([]NurseProfile, 0, len(hits))
	for _, h := range hits {
		out = append(out, snap.profiles[h.pos])
	}
	return out
}

// Close releases the current index.
func (r *Roster) Close() {
	snap := r.snap.Swap(&rosterSnapshot{})
	if snap != nil && snap.index != nil {
		snap.index.Close()
	}
}

type profileDoc struct {
	Text string `json:"text"`
}

func buildIndex(profiles []NurseProfile) (bleve.Index, error) {
	idx, err := bleve.NewMemOnly(rosterMapping())
	if err != nil {
		return nil, err
	}
	batch := idx.NewBatch()
	for i := range profiles {
		doc := profileDoc{Text: profiles[i].searchText()}
		if err := batch.Index(strconv.Itoa(i), doc); err != nil {
			idx.Close()
			return nil, err
		}
	}
	if err := idx.Batch(batch); err != nil {
		idx.Close()
		return nil, err
	}
	return idx, nil
}

func rosterMapping() mapping.IndexMapping {
	textField := bleve.NewTextFieldMapping()
	textField.Index = true
	textField.Store = false
	textField.IncludeInAll = true

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("text", textField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = "standard"
	return indexMapping
}

func indexRosterColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return cols
}

func profileFromRow(row []string, cols map[string]int) (NurseProfile, error) {
	cell := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	id := cell("nurse_id")
	name := cell("name")
	if id == "" || name == "" {
		return NurseProfile{}, fmt.Errorf("row missing nurse_id or name (id=%q)", id)
	}

	years, err := strconv.Atoi(cell("years_experience"))
	if err != nil {
		return NurseProfile{}, fmt.Errorf("nurse %s: bad years_experience: %w", id, err)
	}

	radius := 999 // "unlimited"
	if raw := cell("coverage_radius_miles"); !strings.EqualFold(raw, "unlimited") {
		radius, err = strconv.Atoi(raw)
		if err != nil {
			return NurseProfile{}, fmt.Errorf("nurse %s: bad coverage_radius_miles: %w", id, err)
		}
	}

	rate := 0.0
	if raw := cell("hourly_rate"); raw != "" {
		rate, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			return NurseProfile{}, fmt.Errorf("nurse %s: bad hourly_rate: %w", id, err)
		}
	}

	return NurseProfile{
		NurseID:                id,
		Name:                   name,
		LicenseType:            cell("license_type"),
		Certifications:         splitList(cell("certifications")),
		Specialties:            splitList(cell("specialties")),
		YearsExperience:        years,
		Languages:              splitList(cell("languages")),
		ServiceAreaZip:         cell("service_area_zip"),
		CoverageRadiusMiles:    radius,
		ShiftPreferences:       splitList(cell("shift_preferences")),
		AvailabilitySlots:      cell("availability_slots"),
		EmploymentStatus:       cell("employment_status"),
		PayerEnrollment:        splitList(cell("payer_enrollment")),
		CovidVaccinationStatus: cell("covid_vaccination_status"),
		HourlyRate:             rate,
		ProfileSummary:         cell("profile_summary"),
	}, nil
}

// splitList parses a comma-separated roster cell, dropping empty entries.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func readCSVRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	return reader.ReadAll()
}

func readWorkbookRows(path string) ([][]string, error) {
	wb, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	return wb.GetRows(sheets[0])
}
