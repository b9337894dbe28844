package scoring

import (
	"context"
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/mukulanand/echoviva/internal/i18n"
	"github.com/mukulanand/echoviva/internal/model"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	if err := i18n.Init("en"); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}
	return i18n.WithLocalizer(context.Background(), i18n.NewLocalizer("en"))
}

func TestTierBoundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{100, "FeedbackExcellent"},
		{85.00, "FeedbackExcellent"},
		{84.99, "FeedbackGood"},
		{65.00, "FeedbackGood"},
		{64.99, "FeedbackFair"},
		{45.00, "FeedbackFair"},
		{44.99, "FeedbackNeedsWork"},
		{0, "FeedbackNeedsWork"},
	}
	for _, tt := range tests {
		if got := Tier(tt.score); got != tt.want {
			t.Errorf("Tier(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestEvaluateIdenticalAnswer(t *testing.T) {
	ctx := testCtx(t)
	e := NewEngine()

	score, feedback := e.Evaluate(ctx, "process scheduling algorithm", "process scheduling algorithm")
	if score != 100.0 {
		t.Errorf("score = %v, want 100.0", score)
	}
	if !strings.HasPrefix(feedback, i18n.T(ctx, "FeedbackExcellent")) {
		t.Errorf("feedback = %q, want excellent tier", feedback)
	}
	if strings.Contains(feedback, "Consider including") {
		t.Errorf("complete answer should not carry a tip, got %q", feedback)
	}
}

func TestEvaluateScoreRange(t *testing.T) {
	ctx := testCtx(t)
	e := NewEngine()

	cases := []struct{ user, ref string }{
		{"", "the reference answer"},
		{"totally unrelated words", "process scheduling algorithm"},
		{"Process Scheduling", "process scheduling algorithm"},
		{"a scheduler assigns cpu time to processes", "the scheduler allocates processor time among processes"},
	}
	for _, c := range cases {
		score, feedback := e.Evaluate(ctx, c.user, c.ref)
		if score < 0 || score > 100 {
			t.Errorf("Evaluate(%q, %q) score = %v, outside [0,100]", c.user, c.ref, score)
		}
		if feedback == "" {
			t.Errorf("Evaluate(%q, %q) returned empty feedback", c.user, c.ref)
		}
	}
}

func TestEvaluateMentionsMissedConcepts(t *testing.T) {
	ctx := testCtx(t)
	e := NewEngine()

	_, feedback := e.Evaluate(ctx, "it runs programs", "the kernel schedules processes using priority queues")
	if !strings.Contains(feedback, "Consider including concepts like:") {
		t.Errorf("expected an improvement tip in %q", feedback)
	}
}

func TestGenerateReport(t *testing.T) {
	records := []model.AnswerRecord{
		{Question: "Q1", Score: 90, Feedback: "ok"},
		{Question: "Q2", Score: 50, Feedback: "weak"},
		{Question: "Q3", Score: 70.5, Feedback: "ok"},
	}
	now := time.Date(2025, 11, 3, 14, 30, 0, 0, time.UTC)

	r := GenerateReport("Asha", "S-42", "Operating Systems", records, now)
	if r.User != "Asha" || r.StudentID != "S-42" || r.Subject != "Operating Systems" {
		t.Errorf("identity fields wrong: %+v", r)
	}
	// mean(90, 50, 70.5) = 70.166..., rounded to 2 decimals.
	if r.AverageScore != 70.17 {
		t.Errorf("AverageScore = %v, want 70.17", r.AverageScore)
	}
	if !reflect.DeepEqual(r.WeakAreas, []string{"Q2"}) {
		t.Errorf("WeakAreas = %v, want [Q2]", r.WeakAreas)
	}
	if len(r.Records) != 3 {
		t.Errorf("Records length = %d, want 3", len(r.Records))
	}
	if r.Timestamp != "2025-11-03 14:30:00" {
		t.Errorf("Timestamp = %q", r.Timestamp)
	}
}

func TestGenerateReportEmpty(t *testing.T) {
	r := GenerateReport("", "", "", nil, time.Now())
	if r.AverageScore != 0 {
		t.Errorf("AverageScore = %v, want 0", r.AverageScore)
	}
	if len(r.WeakAreas) != 0 {
		t.Errorf("WeakAreas = %v, want empty", r.WeakAreas)
	}
	if r.User != "Student" || r.StudentID != "Unknown" {
		t.Errorf("missing identity defaults: %+v", r)
	}
}

func TestReportRoundTrip(t *testing.T) {
	records := []model.AnswerRecord{
		{Question: "Q1", UserAnswer: "a", CorrectAnswer: "b", Score: 88.25, Feedback: "fine"},
		{Question: "Q2", UserAnswer: "", CorrectAnswer: "c", Score: 0, Feedback: "No answer detected."},
	}
	orig := GenerateReport("Asha", "S-42", "Networks", records, time.Now())

	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var parsed model.Report
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if parsed.AverageScore != orig.AverageScore {
		t.Errorf("AverageScore changed: %v != %v", parsed.AverageScore, orig.AverageScore)
	}
	if !reflect.DeepEqual(parsed.Records, orig.Records) {
		t.Errorf("Records changed after round trip:\n%+v\n%+v", parsed.Records, orig.Records)
	}
}
