package match

import (
	"strings"
	"testing"

	"github.com/bverbist/tenderwatch/internal/models"
)

func roadNotice() *models.Notice {
	return &models.Notice{
		Title:          "Wegenwerken Gent fase 2",
		Description:    "Heraanleg van de rijweg en aanleg van vrijliggende fietspaden",
		CPVCode:        "45233120",
		AdditionalCPVs: []string{"45310000"},
		NUTSCodes:      []string{"BE234"},
		OrganisationNames: map[string]string{
			"nl": "Stad Gent",
		},
	}
}

func TestEvaluateKeywordAnd(t *testing.T) {
	dict := NewStaticDictionary()

	tests := []struct {
		name     string
		keywords []string
		want     bool
	}{
		{"single keyword hit", []string{"wegenwerken"}, true},
		{"all keywords must hit", []string{"wegenwerken", "fietspad"}, true},
		{"one miss fails the whole set", []string{"wegenwerken", "catering"}, false},
		{"synonym satisfies the keyword", []string{"travaux routiers"}, true},
		{"organisation name is searchable", []string{"stad gent"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &models.Watchlist{Keywords: tt.keywords}
			_, ok := Evaluate(w, roadNotice(), dict)
			if ok != tt.want {
				t.Errorf("Evaluate = %v, want %v", ok, tt.want)
			}
		})
	}
}

func TestEvaluateCPVPrefix(t *testing.T) {
	dict := NewStaticDictionary()

	tests := []struct {
		name     string
		prefixes []string
		want     bool
	}{
		{"prefix of main code", []string{"45"}, true},
		{"full main code", []string{"45233120"}, true},
		{"prefix of additional code", []string{"4531"}, true},
		{"separators normalized", []string{"45.23"}, true},
		{"unrelated division", []string{"71"}, false},
		{"any prefix may satisfy", []string{"71", "45"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &models.Watchlist{CPVPrefixes: tt.prefixes}
			_, ok := Evaluate(w, roadNotice(), dict)
			if ok != tt.want {
				t.Errorf("Evaluate = %v, want %v", ok, tt.want)
			}
		})
	}
}

func TestEvaluateRegionPrefix(t *testing.T) {
	dict := NewStaticDictionary()

	tests := []struct {
		name     string
		prefixes []string
		want     bool
	}{
		{"province prefix", []string{"BE2"}, true},
		{"exact nuts code", []string{"BE234"}, true},
		{"lowercase input", []string{"be23"}, true},
		{"other region", []string{"BE1"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &models.Watchlist{RegionPrefixes: tt.prefixes}
			_, ok := Evaluate(w, roadNotice(), dict)
			if ok != tt.want {
				t.Errorf("Evaluate = %v, want %v", ok, tt.want)
			}
		})
	}
}

func TestEvaluateCategoriesCombineWithAnd(t *testing.T) {
	dict := NewStaticDictionary()

	w := &models.Watchlist{
		Keywords:       []string{"wegenwerken"},
		CPVPrefixes:    []string{"45"},
		RegionPrefixes: []string{"BE2"},
	}
	detail, ok := Evaluate(w, roadNotice(), dict)
	if !ok {
		t.Fatal("all three categories satisfied, should match")
	}
	if len(detail.Keywords) != 1 || len(detail.CPVs) != 1 || len(detail.Regions) != 1 {
		t.Errorf("detail = %+v", detail)
	}

	// Failing any one category fails the whole watchlist.
	w.RegionPrefixes = []string{"BE1"}
	if _, ok := Evaluate(w, roadNotice(), dict); ok {
		t.Error("region miss should fail despite keyword and cpv hits")
	}
}

func TestEvaluateNoCriteriaNeverMatches(t *testing.T) {
	dict := NewStaticDictionary()
	w := &models.Watchlist{Name: "empty"}
	if _, ok := Evaluate(w, roadNotice(), dict); ok {
		t.Error("a watchlist without criteria must never match")
	}
}

func TestDetailScoring(t *testing.T) {
	d := Detail{
		Keywords: []string{"wegenwerken", "fietspad"},
		CPVs:     []string{"45"},
		Regions:  []string{"BE2"},
	}
	if got := d.Score(); got != 2*10+1*5+1*3 {
		t.Errorf("Score = %d", got)
	}

	explanation := d.Explanation()
	for _, fragment := range []string{"keywords: wegenwerken, fietspad", "classification: 45", "region: BE2"} {
		if !strings.Contains(explanation, fragment) {
			t.Errorf("Explanation = %q, missing %q", explanation, fragment)
		}
	}
}

func TestDetailExplanationOmitsEmptyCategories(t *testing.T) {
	d := Detail{Keywords: []string{"bouw"}}
	got := d.Explanation()
	if got != "keywords: bouw" {
		t.Errorf("Explanation = %q", got)
	}
}
