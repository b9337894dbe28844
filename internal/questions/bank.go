// Package questions loads subject question banks from JSON files and
// samples question sets for new sessions.
package questions

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mukulanand/echoviva/internal/model"
)

// Bank holds the questions of a single subject in file order.
type Bank struct {
	Subject string
	Pairs   []model.QuestionPair
}

// Load reads a bank from a JSON object mapping question text to the
// reference answer. Insertion order in the file is preserved, which a
// plain map unmarshal would lose, so the object is walked token by
// token.
func Load(path string) (*Bank, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening question bank: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("reading question bank %s: %w", path, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("question bank %s: expected a JSON object", path)
	}

	bank := &Bank{Subject: subjectFromPath(path)}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("reading question bank %s: %w", path, err)
		}
		question, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("question bank %s: non-string key", path)
		}
		var answer string
		if err := dec.Decode(&answer); err != nil {
			return nil, fmt.Errorf("question bank %s: answer for %q: %w", path, question, err)
		}
		bank.Pairs = append(bank.Pairs, model.QuestionPair{
			Question:        question,
			ReferenceAnswer: answer,
		})
	}
	return bank, nil
}

// Sample returns up to n questions drawn without replacement. When the
// bank holds fewer than n questions, every question is returned. The
// bank itself is not reordered.
func (b *Bank) Sample(n int) []model.QuestionPair {
	if n > len(b.Pairs) {
		n = len(b.Pairs)
	}
	if n <= 0 {
		return nil
	}
	idx := rand.Perm(len(b.Pairs))
	out := make([]model.QuestionPair, 0, n)
	for _, i := range idx[:n] {
		out = append(out, b.Pairs[i])
	}
	return out
}

func subjectFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Catalog indexes loaded banks by subject.
type Catalog struct {
	banks map[string]*Bank
}

// LoadCatalog loads one bank per path. Subject names are the file
// stems; a duplicate stem is an error.
func LoadCatalog(paths []string) (*Catalog, error) {
	c := &Catalog{banks: make(map[string]*Bank)}
	for _, p := range paths {
		bank, err := Load(p)
		if err != nil {
			return nil, err
		}
		if _, dup := c.banks[bank.Subject]; dup {
			return nil, fmt.Errorf("duplicate subject %q from %s", bank.Subject, p)
		}
		c.banks[bank.Subject] = bank
	}
	return c, nil
}

// Subjects lists known subjects in sorted order.
func (c *Catalog) Subjects() []string {
	out := make([]string, 0, len(c.banks))
	for s := range c.banks {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Get returns the bank for a subject.
func (c *Catalog) Get(subject string) (*Bank, bool) {
	b, ok := c.banks[subject]
	return b, ok
}
