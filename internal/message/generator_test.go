package message

import (
	"testing"
	"time"

	"autopost/internal/domain"
)

func fixedClock() time.Time {
	return time.Date(2024, 5, 1, 9, 30, 15, 0, time.Local)
}

func TestGenerateDefaultGreeting(t *testing.T) {
	got := Generator{Now: fixedClock}.Generate()
	want := "Hello world! 🌍 This tweet was auto-posted at 2024-05-01 09:30:15."
	if got != want {
		t.Fatalf("Generate() = %q, want %q", got, want)
	}
	if !domain.IsValid(got) {
		t.Fatalf("default greeting must pass validation")
	}
}

func TestGenerateCustomTemplate(t *testing.T) {
	g := Generator{
		Template: "Daily note for {date} ({run_id})",
		RunID:    "run_01",
		Now:      fixedClock,
	}
	if got := g.Generate(); got != "Daily note for 2024-05-01 (run_01)" {
		t.Fatalf("unexpected render %q", got)
	}
}
