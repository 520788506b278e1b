package engine

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/miradorstack/instana-sre/internal/config"
	"github.com/miradorstack/instana-sre/internal/models"
)

// IncidentFilter selects the incidents a run processes.
type IncidentFilter struct {
	Type        string
	RequireOpen bool
	RequirePRC  bool
	// ProblemPrefixes and EntityLabelPrefixes match when any prefix matches; empty matches all.
	ProblemPrefixes     []string
	EntityLabelPrefixes []string
}

// NewIncidentFilter builds a filter from cfg, narrowed by the selector profile for incidentID
// when one exists.
func NewIncidentFilter(cfg config.FilterConfig, selectors map[int][]string, incidentID *int) IncidentFilter {
	f := IncidentFilter{
		Type:            cfg.Type,
		RequireOpen:     cfg.RequireOpen,
		RequirePRC:      cfg.RequirePRC,
		ProblemPrefixes: append([]string(nil), cfg.ProblemPrefixes...),
	}
	if incidentID != nil {
		if prefixes, ok := selectors[*incidentID]; ok {
			f.EntityLabelPrefixes = append([]string(nil), prefixes...)
		}
	}
	return f
}

// Matches reports whether incident passes every predicate of the filter.
func (f IncidentFilter) Matches(incident models.Incident) bool {
	if f.Type != "" && incident.Type != f.Type {
		return false
	}
	if f.RequireOpen && incident.State != "open" {
		return false
	}
	if f.RequirePRC && !incident.ProbableCause.Found {
		return false
	}
	if !hasAnyPrefix(incident.Problem, f.ProblemPrefixes) {
		return false
	}
	return hasAnyPrefix(incident.EntityLabel, f.EntityLabelPrefixes)
}

// Apply returns the matching incidents in input order.
func (f IncidentFilter) Apply(incidents []models.Incident) []models.Incident {
	out := make([]models.Incident, 0, len(incidents))
	for _, incident := range incidents {
		if f.Matches(incident) {
			out = append(out, incident)
		}
	}
	return out
}

// LogSummary reports what the incident list looks like before filtering.
func LogSummary(logger *slog.Logger, incidents []models.Incident, incidentID *int) {
	states := make(map[string]struct{})
	types := make(map[string]struct{})
	prc := 0
	for _, incident := range incidents {
		states[incident.State] = struct{}{}
		types[incident.Type] = struct{}{}
		if incident.ProbableCause.Found {
			prc++
		}
	}
	selector := "all"
	if incidentID != nil {
		selector = "incident " + strconv.Itoa(*incidentID)
	}
	logger.Info("incident summary",
		slog.Int("incidents", len(incidents)),
		slog.Any("states", sortedKeys(states)),
		slog.Any("types", sortedKeys(types)),
		slog.Int("prc_found", prc),
		slog.String("selector", selector),
	)
}

func hasAnyPrefix(value string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(value, prefix) {
			return true
		}
	}
	return false
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
