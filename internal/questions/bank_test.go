package questions

import (
	"os"
	"path/filepath"
	"testing"
)

func writeBank(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

const osBank = `{
  "What is a process?": "A running instance of a program.",
  "What is virtual memory?": "An abstraction that gives each process its own address space.",
  "What does the scheduler do?": "Decides which ready process runs next on the CPU."
}`

func TestLoadPreservesFileOrder(t *testing.T) {
	path := writeBank(t, t.TempDir(), "operating_systems.json", osBank)

	bank, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if bank.Subject != "operating_systems" {
		t.Errorf("subject = %q, want operating_systems", bank.Subject)
	}
	if len(bank.Pairs) != 3 {
		t.Fatalf("pairs = %d, want 3", len(bank.Pairs))
	}
	wantFirst := "What is a process?"
	wantLast := "What does the scheduler do?"
	if bank.Pairs[0].Question != wantFirst {
		t.Errorf("first question = %q, want %q", bank.Pairs[0].Question, wantFirst)
	}
	if bank.Pairs[2].Question != wantLast {
		t.Errorf("last question = %q, want %q", bank.Pairs[2].Question, wantLast)
	}
	if bank.Pairs[1].ReferenceAnswer == "" {
		t.Error("reference answer missing")
	}
}

func TestLoadRejectsNonObject(t *testing.T) {
	path := writeBank(t, t.TempDir(), "bad.json", `["not", "an", "object"]`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for JSON array")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSample(t *testing.T) {
	path := writeBank(t, t.TempDir(), "os.json", osBank)
	bank, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	t.Run("fewer than available", func(t *testing.T) {
		got := bank.Sample(2)
		if len(got) != 2 {
			t.Fatalf("sampled %d, want 2", len(got))
		}
		if got[0].Question == got[1].Question {
			t.Error("sampled the same question twice")
		}
	})

	t.Run("more than available returns all", func(t *testing.T) {
		got := bank.Sample(10)
		if len(got) != 3 {
			t.Errorf("sampled %d, want 3", len(got))
		}
	})

	t.Run("zero", func(t *testing.T) {
		if got := bank.Sample(0); got != nil {
			t.Errorf("Sample(0) = %v, want nil", got)
		}
	})

	t.Run("bank order untouched", func(t *testing.T) {
		for i := 0; i < 20; i++ {
			bank.Sample(3)
		}
		if bank.Pairs[0].Question != "What is a process?" {
			t.Error("sampling reordered the bank")
		}
	})
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	p1 := writeBank(t, dir, "os.json", osBank)
	p2 := writeBank(t, dir, "networks.json", `{"What is TCP?": "A reliable byte-stream transport protocol."}`)

	cat, err := LoadCatalog([]string{p1, p2})
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	subjects := cat.Subjects()
	if len(subjects) != 2 || subjects[0] != "networks" || subjects[1] != "os" {
		t.Errorf("subjects = %v, want [networks os]", subjects)
	}
	if _, ok := cat.Get("os"); !ok {
		t.Error("os bank missing")
	}
	if _, ok := cat.Get("history"); ok {
		t.Error("unexpected bank for unknown subject")
	}
}

func TestLoadCatalogDuplicateSubject(t *testing.T) {
	d1, d2 := t.TempDir(), t.TempDir()
	p1 := writeBank(t, d1, "os.json", osBank)
	p2 := writeBank(t, d2, "os.json", osBank)
	if _, err := LoadCatalog([]string{p1, p2}); err == nil {
		t.Fatal("expected duplicate subject error")
	}
}
