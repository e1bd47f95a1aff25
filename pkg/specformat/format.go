// Package specformat implements the spec formatter (C5): a pure,
// deterministic projection of a dialogue's extracted parameters into the
// canonical TaskSpecification (spec.md §4.5), grounded on the teacher's
// pkg/agent/context formatters (stateless Format(input) -> string/struct,
// no side effects).
package specformat

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/agentbus/core/pkg/models"
)

// Format projects extractedParams into a TaskSpecification following spec
// §4.5's rules. now is passed explicitly so deadline futurity checks stay
// deterministic and testable.
func Format(p models.ExtractedParams, now time.Time) *models.TaskSpecification {
	spec := &models.TaskSpecification{
		Description: description(p),
		Inputs:      coerceShapes(p.Inputs),
		Outputs:     coerceShapes(p.Outputs),
	}

	constraints, hasConstraints := buildConstraints(p, now)

	tags := map[string]struct{}{}
	addTags(tags, p.Tags)

	platforms := normalizeList(p.RequiredPlatforms)
	if len(platforms) == 0 {
		platforms = normalizeList(p.Platforms)
	}
	for _, v := range platforms {
		tags["platform:"+v] = struct{}{}
	}

	competitors := normalizeList(p.Competitors)
	for _, v := range competitors {
		tags["competitor:"+v] = struct{}{}
	}

	spec.Tags = sortedKeys(tags)

	if hasConstraints {
		constraints.RequiredPlatforms = platforms
		constraints.Competitors = competitors
		spec.Constraints = constraints
	}

	spec.IsComplex = isComplex(p, spec, platforms, competitors)

	return spec
}

// description implements "refined_description ∨ initial_description ∨
// literal 'No description provided.'".
func description(p models.ExtractedParams) string {
	if strings.TrimSpace(p.RefinedDescription) != "" {
		return p.RefinedDescription
	}
	if strings.TrimSpace(p.InitialDescription) != "" {
		return p.InitialDescription
	}
	return "No description provided."
}

// coerceShapes accepts only object-shaped (map) input, rejecting arrays per
// spec §4.5 "coerced to mappings (reject arrays)".
func coerceShapes(raw map[string]any) map[string]models.ShapeDescriptor {
	out := map[string]models.ShapeDescriptor{}
	for name, v := range raw {
		switch val := v.(type) {
		case []any:
			continue // arrays rejected
		case map[string]any:
			out[name] = models.ShapeDescriptor{
				Type:        stringField(val, "type"),
				Description: stringField(val, "description"),
			}
		case string:
			out[name] = models.ShapeDescriptor{Type: val}
		default:
			out[name] = models.ShapeDescriptor{}
		}
	}
	return out
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func buildConstraints(p models.ExtractedParams, now time.Time) (*models.Constraints, bool) {
	c := &models.Constraints{}
	any := false

	if p.Budget != nil {
		if b := parseBudget(*p.Budget); b > 0 {
			c.Budget = b
			c.HasBudget = true
			any = true
		}
	}

	if p.Deadline != "" {
		if d, ok := parseDeadline(p.Deadline, now); ok {
			c.Deadline = d
			c.HasDeadline = true
			any = true
		}
	}

	if p.Quality != "" {
		c.Quality = strings.ToLower(strings.TrimSpace(p.Quality))
		any = true
	}

	if p.Timeframe != "" {
		c.Timeframe = p.Timeframe
		any = true
	}

	return c, any
}

// parseBudget keeps a positive numeric budget; negative or zero values are
// dropped. The budget arrives as a number, so amounts written as strings
// (with or without a currency) are not parsed here.
func parseBudget(raw float64) float64 {
	if raw <= 0 {
		return 0
	}
	return raw
}

// parseDeadline parses a Date|string|number and keeps it only if strictly
// in the future at format time (spec §4.5).
func parseDeadline(raw string, now time.Time) (time.Time, bool) {
	layouts := []string{time.RFC3339, "2006-01-02", "2006-01-02T15:04:05", time.RFC1123}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			if t.After(now) {
				return t, true
			}
			return time.Time{}, false
		}
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		t := time.UnixMilli(ms)
		if t.After(now) {
			return t, true
		}
	}
	return time.Time{}, false
}

// normalizeList trims, drops empties, lowercases, and deduplicates, per
// spec §4.5's tag/platform/competitor normalisation rule.
func normalizeList(raw []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, v := range raw {
		n := strings.ToLower(strings.TrimSpace(v))
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func addTags(set map[string]struct{}, raw []string) {
	for _, v := range normalizeList(raw) {
		set[v] = struct{}{}
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// isComplex takes the explicit LM hint if present, else falls back to the
// heuristic of spec §4.5: required_platforms.length > 1 ∨ has(quality) ∨
// has(competitors) ∨ |inputs|>1 ∨ |outputs|>1.
func isComplex(p models.ExtractedParams, spec *models.TaskSpecification, platforms, competitors []string) bool {
	if p.IsComplexHint != nil {
		return *p.IsComplexHint
	}
	if len(platforms) > 1 {
		return true
	}
	if spec.Constraints != nil && spec.Constraints.Quality != "" {
		return true
	}
	if len(competitors) > 0 {
		return true
	}
	if len(spec.Inputs) > 1 || len(spec.Outputs) > 1 {
		return true
	}
	return false
}
