package profile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultVocabulary(t *testing.T) {
	v := DefaultVocabulary()
	if v.Len() < 66 {
		t.Fatalf("expected at least 66 books, got %d", v.Len())
	}

	books := v.Books()
	if books[0].Name != "Genesis" {
		t.Errorf("expected Genesis first, got %s", books[0].Name)
	}

	gen, ok := v.Lookup("GENESIS")
	if !ok || gen.ShortCode != "GEN" {
		t.Errorf("expected GEN, got %+v", gen)
	}
	jude, ok := v.Lookup("jude")
	if !ok || jude.ShortCode != "JUD" {
		t.Errorf("expected JUD, got %+v", jude)
	}
}

func TestVocabularyMatch(t *testing.T) {
	v := DefaultVocabulary()

	tests := []struct {
		text     string
		expected string
		found    bool
	}{
		{"THE FIRST BOOK OF MOSES CALLED GENESIS", "Genesis", true},
		{"1 John", "1 John", true},
		{"The First Epistle of 1 John", "1 John", true},
		{"John", "John", true},
		{"Remarks on the text", "", false},
		{"Song  of   Songs", "Song of Solomon", true},
		{"Psalms of Solomon", "Psalms of Solomon", true},
		{"Johnson", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			b, ok := v.Match(tt.text)
			if ok != tt.found {
				t.Fatalf("expected found=%v, got %v (%s)", tt.found, ok, b.Name)
			}
			if ok && b.Name != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, b.Name)
			}
		})
	}
}

func TestNewVocabularyErrors(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		if _, err := NewVocabulary(nil); err != ErrEmptyVocabulary {
			t.Errorf("expected ErrEmptyVocabulary, got %v", err)
		}
	})
	t.Run("missing short code", func(t *testing.T) {
		if _, err := NewVocabulary([]Book{{Name: "X"}}); err == nil {
			t.Error("expected error")
		}
	})
	t.Run("duplicate alias", func(t *testing.T) {
		_, err := NewVocabulary([]Book{
			{Name: "A", ShortCode: "A", Aliases: []string{"same"}},
			{Name: "B", ShortCode: "B", Aliases: []string{"Same"}},
		})
		if err == nil {
			t.Error("expected duplicate name error")
		}
	})
}

func TestLoadVocabularyFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "books.yaml")
	content := `
books:
  - name: TESTBOOK
    short_code: TST
    testament: test
    order: 1
    genre: test
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	v, err := LoadVocabularyFile(path)
	if err != nil {
		t.Fatalf("LoadVocabularyFile() error = %v", err)
	}
	if _, ok := v.Lookup("testbook"); !ok {
		t.Error("expected TESTBOOK in vocabulary")
	}
	tokens := v.HeaderTokens()
	if len(tokens) != 2 || tokens[0] != "CHAPTER" || tokens[1] != "TESTBOOK" {
		t.Errorf("unexpected header tokens %v", tokens)
	}
}

func TestThresholdsWithDefaults(t *testing.T) {
	th := Thresholds{InferMinLines: 10}.WithDefaults()
	if th.InferMinLines != 10 {
		t.Errorf("expected override kept, got %d", th.InferMinLines)
	}
	if th.ZoneBand != 0.08 || th.MaxNumber != 200 || th.ReconcileRatio != 1.5 {
		t.Errorf("defaults not applied: %+v", th)
	}

	bad := DefaultThresholds()
	bad.MinNumber = 300
	if err := bad.Validate(); err == nil {
		t.Error("expected validation error")
	}
}

func TestProfiles(t *testing.T) {
	s := Scripture(nil, Thresholds{})
	gen, _ := s.Vocabulary.Lookup("Genesis")
	if id := s.WorkID(gen); id != "yah-gen" {
		t.Errorf("expected yah-gen, got %s", id)
	}

	p, err := Paragraph("The Ministry of Healing", "", Thresholds{})
	if err != nil {
		t.Fatal(err)
	}
	if p.Thresholds.LineTolerance != 3.0 {
		t.Errorf("expected paragraph line tolerance 3.0, got %v", p.Thresholds.LineTolerance)
	}
	b, ok := p.Vocabulary.Lookup("the ministry of healing")
	if !ok {
		t.Fatal("expected title in vocabulary")
	}
	if id := p.WorkID(b); id != "doc-tmoh" {
		t.Errorf("expected doc-tmoh, got %s", id)
	}

	if _, err := Paragraph("  ", "", Thresholds{}); err == nil {
		t.Error("expected error for empty title")
	}
}

func TestParseKind(t *testing.T) {
	for _, in := range []string{"", "scripture", "Paragraph"} {
		if _, err := ParseKind(in); err != nil {
			t.Errorf("ParseKind(%q) error = %v", in, err)
		}
	}
	if _, err := ParseKind("poetry"); err == nil || !strings.Contains(err.Error(), "poetry") {
		t.Errorf("expected error naming the kind, got %v", err)
	}
}
