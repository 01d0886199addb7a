package task

import (
	"strings"
	"testing"
	"time"
)

func TestNormalizeTitle(t *testing.T) {
	long := "Write the quarterly report for the finance team. Include revenue charts and the hiring plan for next year"

	tests := []struct {
		name         string
		raw          string
		wantTitle    string
		wantOverflow string
	}{
		{
			name:      "plain title untouched",
			raw:       "Fix login bug",
			wantTitle: "Fix login bug",
		},
		{
			name:      "markdown stripped",
			raw:       "## **Ship** the `v2` [release](https://example.com)",
			wantTitle: "Ship the v2 release",
		},
		{
			name:      "html stripped and whitespace collapsed",
			raw:       "  <b>Call</b>   the <i>vendor</i> ",
			wantTitle: "Call the vendor",
		},
		{
			name:      "empty becomes untitled",
			raw:       "  ** ** ",
			wantTitle: UntitledTitle,
		},
		{
			name:         "long title split at sentence boundary",
			raw:          long,
			wantTitle:    "Write the quarterly report for the finance team.",
			wantOverflow: "Include revenue charts and the hiring plan for next year",
		},
		{
			name:         "hard cut without spaces",
			raw:          strings.Repeat("x", 90),
			wantTitle:    strings.Repeat("x", 80),
			wantOverflow: strings.Repeat("x", 10),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, overflow := NormalizeTitle(tt.raw)
			if title != tt.wantTitle {
				t.Errorf("title = %q, want %q", title, tt.wantTitle)
			}
			if overflow != tt.wantOverflow {
				t.Errorf("overflow = %q, want %q", overflow, tt.wantOverflow)
			}
			if n := len([]rune(title)); n > MaxTitleLength {
				t.Errorf("title has %d runes, want <= %d", n, MaxTitleLength)
			}
		})
	}
}

func TestNormalizeTitle_WordBoundary(t *testing.T) {
	raw := strings.Repeat("word ", 20) // 100 chars, no punctuation
	title, overflow := NormalizeTitle(raw)

	if len(title) > MaxTitleLength {
		t.Fatalf("title length = %d", len(title))
	}
	if strings.HasSuffix(title, " ") || strings.HasPrefix(overflow, " ") {
		t.Errorf("split should not leave spaces: %q / %q", title, overflow)
	}
	if strings.Join(strings.Fields(title+" "+overflow), " ") != strings.TrimSpace(raw) {
		t.Error("split must not drop content")
	}
}

func TestNormalize_MovesOverflowIntoDescription(t *testing.T) {
	tk := &Task{
		ID:          "t1",
		Title:       "Plan the offsite. Book the venue, order catering and send the agenda to everyone on the team",
		Description: "Budget is fixed.",
	}
	Normalize(tk)

	if tk.Title != "Plan the offsite." {
		t.Errorf("Title = %q", tk.Title)
	}
	want := "Book the venue, order catering and send the agenda to everyone on the team\n\nBudget is fixed."
	if tk.Description != want {
		t.Errorf("Description = %q, want %q", tk.Description, want)
	}
}

func TestNormalize_Dates(t *testing.T) {
	tests := []struct {
		name      string
		start     string
		end       string
		wantStart string
		wantEnd   string
	}{
		{"canonical", "2026-03-01", "2026-03-05", "2026-03-01", "2026-03-05"},
		{"reformatted", "2026/03/01", "2026-03-05T10:00:00Z", "2026-03-01", "2026-03-05"},
		{"us format", "03/01/2026", "", "2026-03-01", ""},
		{"unparsable dropped", "next tuesday", "2026-03-05", "", "2026-03-05"},
		{"end before start nudged", "2026-03-05", "2026-03-01", "2026-03-05", "2026-03-06"},
		{"equal dates kept", "2026-03-05", "2026-03-05", "2026-03-05", "2026-03-05"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := &Task{ID: "t", Title: "x", StartDate: tt.start, EndDate: tt.end}
			Normalize(tk)
			if tk.StartDate != tt.wantStart {
				t.Errorf("StartDate = %q, want %q", tk.StartDate, tt.wantStart)
			}
			if tk.EndDate != tt.wantEnd {
				t.Errorf("EndDate = %q, want %q", tk.EndDate, tt.wantEnd)
			}
		})
	}
}

func TestNormalize_DefaultsAndDedup(t *testing.T) {
	tk := &Task{
		ID:            "self",
		Title:         "x",
		Status:        "doing",
		Priority:      "bogus",
		Tags:          []string{"#work", "Work", " ", "home"},
		DependencyIDs: []string{"a", "self", "a", "", "b"},
	}
	Normalize(tk)

	if tk.Status != StatusInProgress {
		t.Errorf("Status = %q, want in-progress", tk.Status)
	}
	if tk.Priority != PriorityMedium {
		t.Errorf("Priority = %q, want medium", tk.Priority)
	}
	if len(tk.Tags) != 2 || tk.Tags[0] != "work" || tk.Tags[1] != "home" {
		t.Errorf("Tags = %v, want [work home]", tk.Tags)
	}
	if len(tk.DependencyIDs) != 2 || tk.DependencyIDs[0] != "a" || tk.DependencyIDs[1] != "b" {
		t.Errorf("DependencyIDs = %v, want [a b]", tk.DependencyIDs)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []*Task{
		{ID: "1", Title: "- - **Fix** <em>it</em>", StartDate: "2026/01/02", EndDate: "2025-12-01"},
		{ID: "2", Title: strings.Repeat("Long sentence here. ", 8), Description: "  body  "},
		{ID: "3", Title: "# 1. `code` ~~old~~ [link](x)", Tags: []string{"#a", "A", "b"}},
		{ID: "4", Title: strings.Repeat("y", 200), DependencyIDs: []string{"4", "x", "x"}},
	}

	for _, in := range inputs {
		once := in.Clone()
		Normalize(once)
		twice := once.Clone()
		Normalize(twice)

		if once.Title != twice.Title || once.Description != twice.Description {
			t.Errorf("task %s: text changed on second pass: %q/%q -> %q/%q",
				in.ID, once.Title, once.Description, twice.Title, twice.Description)
		}
		if once.StartDate != twice.StartDate || once.EndDate != twice.EndDate {
			t.Errorf("task %s: dates changed on second pass", in.ID)
		}
		if strings.Join(once.Tags, ",") != strings.Join(twice.Tags, ",") {
			t.Errorf("task %s: tags changed on second pass", in.ID)
		}
		if strings.Join(once.DependencyIDs, ",") != strings.Join(twice.DependencyIDs, ",") {
			t.Errorf("task %s: dependencies changed on second pass", in.ID)
		}
	}
}

func TestStripMarkup_DeeplyNested(t *testing.T) {
	raw := strings.Repeat("<b>", 10) + "plan" + strings.Repeat("</b>", 10)
	if got := StripMarkup(raw); got != "plan" {
		t.Errorf("StripMarkup = %q, want %q", got, "plan")
	}

	interleaved := strings.Repeat("<", 12) + strings.Repeat("b>", 12) + " plan"
	once := StripMarkup(interleaved)
	if twice := StripMarkup(once); twice != once {
		t.Errorf("not idempotent: %q -> %q", once, twice)
	}

	tk := &Task{ID: "n", Title: interleaved}
	Normalize(tk)
	first := tk.Title
	Normalize(tk)
	if tk.Title != first {
		t.Errorf("Normalize not idempotent: %q -> %q", first, tk.Title)
	}
}

func TestPatchApply(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	tk := New("t1", "Original", now.Add(-time.Hour))

	title := "**Renamed**"
	bad := Status("exploded")
	end := "2026/05/10"
	Patch{Title: &title, Status: &bad, EndDate: &end}.Apply(tk, now)

	if tk.Title != "Renamed" {
		t.Errorf("Title = %q", tk.Title)
	}
	if tk.Status != StatusTodo {
		t.Errorf("invalid status in patch should be ignored, got %q", tk.Status)
	}
	if tk.EndDate != "2026-05-10" {
		t.Errorf("EndDate = %q", tk.EndDate)
	}
	if !tk.UpdatedAt.Equal(now) {
		t.Errorf("UpdatedAt = %v, want %v", tk.UpdatedAt, now)
	}
}
