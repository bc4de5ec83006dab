package mapper

// Package mapper resolves the Qase case every collected test belongs to and
// prepares the payload used to create the shared run.

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/qasego/qasego/model"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

const (
	runNameTemplate = "(%s) Automated Test Run %s %s"
	runDateLayout   = "01/02/2006 15:04:05"
)

// Mapper maps test items to Qase case ids.
type Mapper struct {
	logger      zerolog.Logger
	projectCode string
	env         string
	browser     string
	runName     string
	now         func() time.Time
}

// Option is a function that configures a Mapper.
type Option func(*Mapper)

// WithClock sets the clock used to timestamp the run title.
func WithClock(now func() time.Time) Option {
	return func(m *Mapper) {
		m.now = now
	}
}

// WithRunName overrides the generated run title.
func WithRunName(name string) Option {
	return func(m *Mapper) {
		m.runName = name
	}
}

// New creates a Mapper for the given project, environment and browser labels.
func New(logger zerolog.Logger, projectCode, env, browser string, opts ...Option) *Mapper {
	m := &Mapper{
		logger:      logger,
		projectCode: projectCode,
		env:         env,
		browser:     browser,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Title renders the run title for env and browser at the given time (in UTC).
func Title(env, browser string, now time.Time) string {
	return fmt.Sprintf(runNameTemplate, capitalize(env), capitalize(browser), now.UTC().Format(runDateLayout))
}

// ExtractCaseID parses the case id out of a marker reference. The id is the
// integer following the last "<projectCode>-" in ref.
func ExtractCaseID(projectCode, ref string) (model.CaseID, error) {
	suffix := strings.TrimSpace(ref)
	if suffix == "" {
		return 0, fmt.Errorf("empty case reference")
	}

	sep := projectCode + "-"
	if idx := strings.LastIndex(suffix, sep); idx >= 0 {
		suffix = suffix[idx+len(sep):]
	}

	id, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed case reference %q: %w", ref, err)
	}
	if id <= 0 {
		return 0, fmt.Errorf("case id must be positive, got %d in %q", id, ref)
	}
	return model.CaseID(id), nil
}

// PrepareRun validates every item against the known case ids and returns the
// run payload together with the node id -> case id mapping.
//
// Invalid ids are accumulated so every problem is logged in one pass.
func (m *Mapper) PrepareRun(knownCases []model.CaseID, items []model.TestItem) (model.RunCreate, model.TestCaseMapping, error) {
	known := make(map[model.CaseID]struct{}, len(knownCases))
	for _, id := range knownCases {
		known[id] = struct{}{}
	}

	var (
		cases    []model.CaseID
		problems error
		// marker sources already accounted for
		parsedMarkers = make(map[string]struct{})
		mapping       = make(model.TestCaseMapping, len(items))
	)

	for _, item := range items {
		marker, err := m.extractMarker(item)
		if err != nil {
			return model.RunCreate{}, nil, err
		}

		caseID := m.caseIDForMarker(item, marker)
		mapping[item.NodeID] = caseID

		// Tests sharing one marker declaration count once
		if marker != nil {
			if _, seen := parsedMarkers[marker.Source]; seen {
				continue
			}
			parsedMarkers[marker.Source] = struct{}{}
		}

		if caseID == nil {
			m.logger.Error().
				Str("test", item.Name).
				Str("location", item.Location()).
				Msgf("No case id found for %s! Please add case id for %s", item.Name, item.Location())
			problems = multierr.Append(problems, fmt.Errorf("%s: no case id", item.NodeID))
			continue
		}
		if _, ok := known[*caseID]; !ok {
			m.logger.Error().
				Str("test", item.Name).
				Int64("case_id", int64(*caseID)).
				Msgf("Case with ID %d not found for %s! Please check case id for %s", *caseID, item.Name, item.File)
			problems = multierr.Append(problems, fmt.Errorf("%s: case %d not found in project %s", item.NodeID, *caseID, m.projectCode))
			continue
		}
		cases = append(cases, *caseID)
	}

	if dups := duplicates(cases); len(dups) > 0 {
		return model.RunCreate{}, nil, &model.DuplicatingCaseIDError{IDs: dups}
	}

	if problems != nil {
		return model.RunCreate{}, nil, &model.InvalidCaseIDError{Problems: problems}
	}

	return model.RunCreate{
		Title: m.title(),
		Cases: cases,
	}, mapping, nil
}

func (m *Mapper) title() string {
	if m.runName != "" {
		return m.runName
	}
	return Title(m.env, m.browser, m.now())
}

// extractMarker returns the single marker of item, nil when it has none.
func (m *Mapper) extractMarker(item model.TestItem) (*model.Marker, error) {
	switch len(item.Markers) {
	case 0:
		return nil, nil
	case 1:
		return &item.Markers[0], nil
	}

	m.logger.Error().
		Str("test", item.NodeID).
		Int("markers", len(item.Markers)).
		Msgf("Multiple qase IDs associated with: %s", item.NodeID)
	return nil, &model.MultipleIDsForTestError{NodeID: item.NodeID}
}

func (m *Mapper) caseIDForMarker(item model.TestItem, marker *model.Marker) *model.CaseID {
	if marker == nil {
		return nil
	}
	id, err := ExtractCaseID(m.projectCode, marker.Ref)
	if err != nil {
		m.logger.Warn().Err(err).Str("test", item.NodeID).Str("marker", marker.Source).Msg("Unable to parse case reference")
		return nil
	}
	return &id
}

// duplicates returns every id occurring more than once, in first-seen order.
func duplicates(ids []model.CaseID) []model.CaseID {
	counts := make(map[model.CaseID]int, len(ids))
	var order []model.CaseID
	for _, id := range ids {
		if counts[id] == 0 {
			order = append(order, id)
		}
		counts[id]++
	}

	var dups []model.CaseID
	for _, id := range order {
		if counts[id] > 1 {
			dups = append(dups, id)
		}
	}
	return dups
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
