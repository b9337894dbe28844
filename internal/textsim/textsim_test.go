package textsim

import (
	"testing"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"lowercase", "Hello World", "hello world"},
		{"punctuation stripped", "a, b. c!", "a b c"},
		{"whitespace collapsed", "  a \t b\n\nc  ", "a b c"},
		{"mixed", "The O.S. schedules; processes!", "the os schedules processes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.in); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizedSimilarity(t *testing.T) {
	if got := NormalizedSimilarity("process scheduling algorithm", "process scheduling algorithm"); got != 1.0 {
		t.Errorf("identical strings: got %v, want 1.0", got)
	}
	if got := NormalizedSimilarity("", ""); got != 0 {
		t.Errorf("both empty: got %v, want 0", got)
	}
	if got := NormalizedSimilarity("something", ""); got != 0 {
		t.Errorf("one empty: got %v, want 0", got)
	}

	sim := NormalizedSimilarity("the scheduler picks a process", "completely unrelated words here")
	if sim < 0 || sim >= 1 {
		t.Errorf("dissimilar strings: got %v, want value in [0,1)", sim)
	}

	close := NormalizedSimilarity("process scheduling", "process scheduling algorithm")
	far := NormalizedSimilarity("process scheduling", "database indexing")
	if close <= far {
		t.Errorf("expected closer pair to score higher: close=%v far=%v", close, far)
	}
}

func TestExtractKeywords(t *testing.T) {
	kw := ExtractKeywords("The process is scheduled by the scheduler")
	if len(kw) == 0 {
		t.Fatal("expected keywords")
	}
	// Stop words must not survive extraction.
	for _, stop := range []string{"the", "is", "by"} {
		if _, ok := kw[stop]; ok {
			t.Errorf("stop word %q kept as keyword", stop)
		}
	}
	// "scheduled" and "scheduler" share a stem, so both map into the set.
	if _, ok := kw[stem("scheduled")]; !ok {
		t.Errorf("expected stem of 'scheduled' in %v", kw)
	}

	if got := ExtractKeywords(""); len(got) != 0 {
		t.Errorf("empty text: got %v, want empty set", got)
	}
}

func TestKeywordSimilarity(t *testing.T) {
	if got := KeywordSimilarity("process scheduling algorithm", "process scheduling algorithm"); got != 1.0 {
		t.Errorf("identical texts: got %v, want 1.0", got)
	}
	if got := KeywordSimilarity("", "process scheduling"); got != 0 {
		t.Errorf("empty side: got %v, want 0", got)
	}
	if got := KeywordSimilarity("the a an", "process"); got != 0 {
		t.Errorf("stop-words-only side: got %v, want 0", got)
	}

	partial := KeywordSimilarity("process scheduling", "process memory")
	if partial <= 0 || partial >= 1 {
		t.Errorf("partial overlap: got %v, want value in (0,1)", partial)
	}
}

func TestMissingKeywords(t *testing.T) {
	missing := MissingKeywords(
		"a process runs",
		"process scheduling uses priority queues and preemption",
		4,
	)
	if len(missing) == 0 {
		t.Fatal("expected missing keywords")
	}
	if len(missing) > 4 {
		t.Errorf("limit not honored: got %d entries", len(missing))
	}
	for _, m := range missing {
		if stem(m) == stem("process") {
			t.Errorf("%q present in user answer but reported missing", m)
		}
	}
	// Order of appearance in the reference answer is preserved.
	if missing[0] != "scheduling" {
		t.Errorf("first missing keyword = %q, want 'scheduling'", missing[0])
	}

	if got := MissingKeywords("process scheduling algorithm", "process scheduling algorithm", 4); len(got) != 0 {
		t.Errorf("complete answer: got %v, want none", got)
	}
}
