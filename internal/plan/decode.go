// Package plan turns externally generated task plans into graph-ready drafts.
//
// Decoding is a validated-parse boundary: raw AI output goes in, typed
// drafts and a list of what was dropped or defaulted come out. Nothing in
// this package returns an error for malformed input.
package plan

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/randalmurphal/taskgraph/internal/task"
)

// Draft is one task proposed by a plan. Dependencies refer to positions
// within the same plan, not to task identities.
type Draft struct {
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Priority    task.Priority `json:"priority"`
	Status      task.Status   `json:"status"`
	Tags        []string      `json:"tags,omitempty"`
	// DurationDays is 0 when absent or invalid; hydration estimates it.
	DurationDays      int   `json:"duration_days,omitempty"`
	StartDayOffset    int   `json:"start_day_offset"`
	DependencyIndices []int `json:"dependency_indices,omitempty"`
}

// Suggestion is a single proposed task.
type Suggestion struct {
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Priority    task.Priority `json:"priority"`
}

// Issue records a field that was dropped or defaulted. Index is the draft's
// position in the plan, or -1 for the payload as a whole.
type Issue struct {
	Index   int    `json:"index"`
	Field   string `json:"field"`
	Problem string `json:"problem"`
}

func (i Issue) String() string {
	if i.Index < 0 {
		return fmt.Sprintf("%s: %s", i.Field, i.Problem)
	}
	return fmt.Sprintf("draft %d %s: %s", i.Index, i.Field, i.Problem)
}

var fencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)```")

// Field aliases accepted from providers.
var (
	durationKeys = []string{"durationDays", "duration_days", "duration"}
	offsetKeys   = []string{"startDayOffset", "start_day_offset", "startOffset", "offset"}
	depKeys      = []string{"dependencyIndices", "dependency_indices", "dependencies", "dependsOn", "depends_on"}
	listKeys     = []string{"tasks", "plan", "items"}
)

// extractJSON finds the JSON payload in raw provider output. It accepts bare
// JSON, JSON inside a markdown code fence, and JSON surrounded by prose.
func extractJSON(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	if gjson.Valid(s) {
		return s, true
	}
	for _, m := range fencePattern.FindAllStringSubmatch(s, -1) {
		if body := strings.TrimSpace(m[1]); gjson.Valid(body) {
			return body, true
		}
	}
	for _, pair := range [][2]byte{{'[', ']'}, {'{', '}'}} {
		start := strings.IndexByte(s, pair[0])
		end := strings.LastIndexByte(s, pair[1])
		if start >= 0 && end > start {
			if body := s[start : end+1]; gjson.Valid(body) {
				return body, true
			}
		}
	}
	return "", false
}

// DecodePlan parses a plan: a JSON array of drafts or an object holding one
// under "tasks". Drafts without a usable title are dropped; every other bad
// field is defaulted. Both outcomes are reported as issues.
func DecodePlan(raw string) ([]Draft, []Issue) {
	body, ok := extractJSON(raw)
	if !ok {
		return nil, []Issue{{Index: -1, Field: "payload", Problem: "no JSON found"}}
	}

	root := gjson.Parse(body)
	items, ok := planItems(root)
	if !ok {
		return nil, []Issue{{Index: -1, Field: "payload", Problem: "no task list found"}}
	}

	var (
		drafts []Draft
		issues []Issue
		// position maps an index in items to an index in drafts.
		position = make(map[int]int, len(items))
	)
	for i, item := range items {
		d, itemIssues, keep := decodeDraft(i, item)
		issues = append(issues, itemIssues...)
		if keep {
			position[i] = len(drafts)
			drafts = append(drafts, d)
		}
	}
	if len(drafts) == 0 {
		return nil, append(issues, Issue{Index: -1, Field: "payload", Problem: "no usable drafts"})
	}

	// Indices in the payload count dropped drafts; rewrite them to positions
	// in the returned slice. Out-of-range indices pass through for Hydrate.
	for i := range drafts {
		var deps []int
		for _, idx := range drafts[i].DependencyIndices {
			if idx < 0 || idx >= len(items) {
				deps = append(deps, idx)
				continue
			}
			pos, ok := position[idx]
			if !ok {
				issues = append(issues, Issue{Index: i, Field: "dependencyIndices",
					Problem: fmt.Sprintf("index %d refers to a dropped draft", idx)})
				continue
			}
			deps = append(deps, pos)
		}
		drafts[i].DependencyIndices = deps
	}
	return drafts, issues
}

// planItems locates the draft list.
func planItems(root gjson.Result) ([]gjson.Result, bool) {
	if root.IsArray() {
		return root.Array(), true
	}
	if !root.IsObject() {
		return nil, false
	}
	for _, key := range listKeys {
		if list := root.Get(key); list.IsArray() {
			return list.Array(), true
		}
	}
	if root.Get("title").Exists() {
		return []gjson.Result{root}, true
	}
	return nil, false
}

func decodeDraft(i int, item gjson.Result) (Draft, []Issue, bool) {
	var issues []Issue
	note := func(field, problem string) {
		issues = append(issues, Issue{Index: i, Field: field, Problem: problem})
	}

	if !item.IsObject() {
		note("draft", "not an object, dropped")
		return Draft{}, issues, false
	}

	d := Draft{
		Title:       strings.TrimSpace(item.Get("title").String()),
		Description: strings.TrimSpace(item.Get("description").String()),
	}
	if task.StripMarkup(d.Title) == "" {
		note("title", "missing, dropped")
		return Draft{}, issues, false
	}

	d.Priority = task.PriorityMedium
	if v := item.Get("priority"); v.Exists() {
		p, ok := task.ParsePriority(v.String())
		if !ok {
			note("priority", fmt.Sprintf("unknown value %q, defaulted to medium", v.String()))
		}
		d.Priority = p
	}

	d.Status = task.StatusTodo
	if v := item.Get("status"); v.Exists() {
		st, ok := task.ParseStatus(v.String())
		if !ok {
			note("status", fmt.Sprintf("unknown value %q, defaulted to todo", v.String()))
		}
		d.Status = st
	}

	d.Tags = decodeTags(item.Get("tags"))

	if v, ok := first(item, durationKeys); ok {
		n, err := toInt(v, true)
		switch {
		case err != nil:
			note("durationDays", fmt.Sprintf("invalid value %s (%v), will be estimated", v.Raw, err))
		case n < 1:
			note("durationDays", fmt.Sprintf("invalid value %s, will be estimated", v.Raw))
		default:
			d.DurationDays = n
		}
	} else {
		note("durationDays", "missing, will be estimated")
	}

	if v, ok := first(item, offsetKeys); ok {
		n, err := toInt(v, false)
		switch {
		case err != nil:
			note("startDayOffset", fmt.Sprintf("invalid value %s (%v), defaulted to 0", v.Raw, err))
		case n < 0:
			note("startDayOffset", "negative, clamped to 0")
		default:
			d.StartDayOffset = n
		}
	}

	if v, ok := first(item, depKeys); ok {
		if !v.IsArray() {
			note("dependencyIndices", "not a list, dropped")
		}
		for _, e := range v.Array() {
			n, err := toInt(e, false)
			if err != nil {
				note("dependencyIndices", fmt.Sprintf("entry %s dropped: %v", e.Raw, err))
				continue
			}
			d.DependencyIndices = append(d.DependencyIndices, n)
		}
	}

	return d, issues, true
}

// DecodeSuggestion parses a single proposed task. It reports false when the
// output holds nothing usable.
func DecodeSuggestion(raw string) (Suggestion, bool) {
	body, ok := extractJSON(raw)
	if !ok {
		return Suggestion{}, false
	}
	root := gjson.Parse(body)
	if root.IsArray() {
		root = root.Get("0")
	}
	if !root.IsObject() {
		return Suggestion{}, false
	}
	if nested := root.Get("suggestion"); nested.IsObject() {
		root = nested
	}

	s := Suggestion{
		Title:       strings.TrimSpace(root.Get("title").String()),
		Description: strings.TrimSpace(root.Get("description").String()),
	}
	if task.StripMarkup(s.Title) == "" {
		return Suggestion{}, false
	}
	s.Priority, _ = task.ParsePriority(root.Get("priority").String())
	return s, true
}

func first(item gjson.Result, keys []string) (gjson.Result, bool) {
	for _, k := range keys {
		if v := item.Get(k); v.Exists() && v.Type != gjson.Null {
			return v, true
		}
	}
	return gjson.Result{}, false
}

// MaxDaySpan bounds durations and start offsets, in days, accepted from a plan.
const MaxDaySpan = 36500

var (
	errNotWhole   = errors.New("not a whole number")
	errOutOfRange = fmt.Errorf("outside -%d..%d", MaxDaySpan, MaxDaySpan)
)

// toInt reads a JSON number or numeric string within ±MaxDaySpan. Fractions
// are rounded up when ceil is set and rejected otherwise.
func toInt(v gjson.Result, ceil bool) (int, error) {
	var f float64
	switch v.Type {
	case gjson.Number:
		f = v.Float()
	case gjson.String:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return 0, errNotWhole
		}
		f = parsed
	default:
		return 0, errNotWhole
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotWhole
	}
	if f != math.Trunc(f) {
		if !ceil {
			return 0, errNotWhole
		}
		f = math.Ceil(f)
	}
	if math.Abs(f) > MaxDaySpan {
		return 0, errOutOfRange
	}
	return int(f), nil
}

func decodeTags(v gjson.Result) []string {
	var raw []string
	switch {
	case v.IsArray():
		for _, e := range v.Array() {
			if e.Type == gjson.String {
				raw = append(raw, e.Str)
			}
		}
	case v.Type == gjson.String:
		raw = strings.Split(v.Str, ",")
	}
	var tags []string
	for _, t := range raw {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
