package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mukulanand/echoviva/internal/model"
)

func sampleReport(user string, avg float64) model.Report {
	return model.Report{
		User:         user,
		StudentID:    "S-1",
		Subject:      "os",
		AverageScore: avg,
		WeakAreas:    []string{"What is paging?"},
		Records: []model.AnswerRecord{
			{Question: "What is paging?", UserAnswer: "no idea",
				CorrectAnswer: "Fixed-size memory mapping.", Score: avg, Feedback: "Needs improvement."},
		},
		Timestamp: "2025-11-03 14:30:00",
	}
}

func TestAppendAndList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "user_reports.json")
	s := NewStore(path)

	if err := s.Append(sampleReport("Asha", 55)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append(sampleReport("Bo", 80)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("listed %d reports, want 2", len(got))
	}
	if got[0].User != "Asha" || got[1].User != "Bo" {
		t.Errorf("order = [%s %s], want append order", got[0].User, got[1].User)
	}
	if got[0].AverageScore != 55 || got[0].Records[0].Feedback != "Needs improvement." {
		t.Errorf("report = %+v", got[0])
	}

	// One JSON object per line.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Errorf("file has %d lines, want 2", len(lines))
	}
}

func TestListMissingFile(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nope.json"))
	got, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got != nil {
		t.Errorf("got %v, want nil", got)
	}
}

func TestListSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user_reports.json")
	s := NewStore(path)
	if err := s.Append(sampleReport("Asha", 70)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if _, err := f.WriteString("{not json\n"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	f.Close()
	if err := s.Append(sampleReport("Bo", 90)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("listed %d reports, want 2", len(got))
	}
}
