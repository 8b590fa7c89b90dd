package match

import (
	"strings"
	"testing"
)

func TestExpandExact(t *testing.T) {
	d := NewStaticDictionary()

	got := d.Expand("wegenwerken")
	if got[0] != "wegenwerken" {
		t.Errorf("first expansion must be the keyword itself, got %q", got[0])
	}
	if !containsTerm(got, "travaux routiers") {
		t.Errorf("expected french synonym in %v", got)
	}
	if !containsTerm(got, "road works") {
		t.Errorf("expected english synonym in %v", got)
	}
}

func TestExpandCaseInsensitive(t *testing.T) {
	d := NewStaticDictionary()
	got := d.Expand("  Wegenwerken ")
	if got[0] != "wegenwerken" {
		t.Errorf("keyword should be trimmed and lowercased, got %q", got[0])
	}
	if !containsTerm(got, "travaux routiers") {
		t.Errorf("case variant should expand too, got %v", got)
	}
}

func TestExpandUnknownKeyword(t *testing.T) {
	d := NewStaticDictionary()
	got := d.Expand("zonnepanelen-onderhoud-xyz")
	if got[0] != "zonnepanelen-onderhoud-xyz" {
		t.Errorf("unknown keyword must survive as itself, got %v", got)
	}
}

func TestExpandCompoundFallback(t *testing.T) {
	d := NewStaticDictionary()
	// No exact group for the compound, but the embedded term should pull
	// its synonyms in.
	got := d.Expand("wegenwerken fase 2")
	if !containsTerm(got, "travaux routiers") {
		t.Errorf("compound keyword should expand via substring, got %v", got)
	}
}

func TestExpandEmpty(t *testing.T) {
	d := NewStaticDictionary()
	if got := d.Expand("   "); got != nil {
		t.Errorf("blank keyword should expand to nothing, got %v", got)
	}
}

func TestExpandNoDuplicates(t *testing.T) {
	d := NewStaticDictionary()
	got := d.Expand("bouw")
	seen := map[string]bool{}
	for _, term := range got {
		k := strings.ToLower(term)
		if seen[k] {
			t.Errorf("duplicate expansion %q in %v", term, got)
		}
		seen[k] = true
	}
}

func containsTerm(terms []string, want string) bool {
	for _, term := range terms {
		if strings.EqualFold(term, want) {
			return true
		}
	}
	return false
}
