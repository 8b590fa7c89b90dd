package ingest

import (
	"testing"
	"time"
)

func TestFirstString(t *testing.T) {
	doc := RawDoc{
		"empty": "",
		"nested": map[string]interface{}{
			"id": "WS-42",
		},
		"list": []interface{}{
			map[string]interface{}{"value": "first"},
			map[string]interface{}{"value": "second"},
		},
		"number": float64(123),
	}

	tests := []struct {
		name  string
		paths []string
		want  string
	}{
		{"first non-empty wins", []string{"empty", "nested.id"}, "WS-42"},
		{"missing paths fall through", []string{"nope", "also.nope", "nested.id"}, "WS-42"},
		{"array hop takes first element", []string{"list.value"}, "first"},
		{"numbers stringify without decimals", []string{"number"}, "123"},
		{"all empty yields empty", []string{"empty", "nope"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := doc.FirstString(tt.paths...); got != tt.want {
				t.Errorf("FirstString(%v) = %q, want %q", tt.paths, got, tt.want)
			}
		})
	}
}

func TestLangString(t *testing.T) {
	tests := []struct {
		name string
		doc  RawDoc
		want string
	}{
		{
			name: "dutch preferred over french and english",
			doc: RawDoc{"title": map[string]interface{}{
				"en": "Road works",
				"nl": "Wegenwerken",
				"fr": "Travaux routiers",
			}},
			want: "Wegenwerken",
		},
		{
			name: "french when dutch absent",
			doc: RawDoc{"title": map[string]interface{}{
				"fr": "Travaux routiers",
				"en": "Road works",
			}},
			want: "Travaux routiers",
		},
		{
			name: "eng variant recognised",
			doc: RawDoc{"title": map[string]interface{}{
				"eng": "Road works",
			}},
			want: "Road works",
		},
		{
			name: "list values take their head",
			doc: RawDoc{"title": map[string]interface{}{
				"nl": []interface{}{"Eerste", "Tweede"},
			}},
			want: "Eerste",
		},
		{
			name: "plain string passes through",
			doc:  RawDoc{"title": "Just a title"},
			want: "Just a title",
		},
		{
			name: "unknown language still resolves",
			doc: RawDoc{"title": map[string]interface{}{
				"pl": "Roboty drogowe",
			}},
			want: "Roboty drogowe",
		},
		{
			name: "missing field yields empty",
			doc:  RawDoc{},
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.doc.LangString("title"); got != tt.want {
				t.Errorf("LangString = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLangMap(t *testing.T) {
	doc := RawDoc{"name": map[string]interface{}{
		"NL":  "Stad Gent",
		"fr":  "Ville de Gand",
		"eng": "City of Ghent",
		"de":  "",
	}}
	got := doc.LangMap("name")
	want := map[string]string{"nl": "Stad Gent", "fr": "Ville de Gand", "en": "City of Ghent"}
	if len(got) != len(want) {
		t.Fatalf("LangMap = %v, want %v", got, want)
	}
	for lang, v := range want {
		if got[lang] != v {
			t.Errorf("LangMap[%q] = %q, want %q", lang, got[lang], v)
		}
	}
}

func TestFloatParsing(t *testing.T) {
	tests := []struct {
		name    string
		doc     RawDoc
		want    float64
		wantNil bool
	}{
		{"plain number", RawDoc{"v": float64(1500.5)}, 1500.5, false},
		{"eu decimal comma", RawDoc{"v": "1.234.567,89"}, 1234567.89, false},
		{"us thousands", RawDoc{"v": "1,234,567.89"}, 1234567.89, false},
		{"bare comma decimal", RawDoc{"v": "99,5"}, 99.5, false},
		{"spaces stripped", RawDoc{"v": "12 500"}, 12500, false},
		{"amount object", RawDoc{"v": map[string]interface{}{"amount": "250000", "currency": "EUR"}}, 250000, false},
		{"garbage yields nil", RawDoc{"v": "n/a"}, 0, true},
		{"missing yields nil", RawDoc{}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.doc.Float("v")
			if tt.wantNil {
				if got != nil {
					t.Errorf("Float = %v, want nil", *got)
				}
				return
			}
			if got == nil {
				t.Fatal("Float = nil, want value")
			}
			if *got != tt.want {
				t.Errorf("Float = %v, want %v", *got, tt.want)
			}
		})
	}
}

func TestTimeParsing(t *testing.T) {
	tests := []struct {
		name    string
		doc     RawDoc
		want    time.Time
		wantNil bool
	}{
		{"rfc3339", RawDoc{"v": "2025-03-15T10:30:00Z"}, time.Date(2025, 3, 15, 10, 30, 0, 0, time.UTC), false},
		{"iso without zone", RawDoc{"v": "2025-03-15T10:30:00"}, time.Date(2025, 3, 15, 10, 30, 0, 0, time.UTC), false},
		{"bare date", RawDoc{"v": "2025-03-15"}, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), false},
		{"belgian date", RawDoc{"v": "15/03/2025"}, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), false},
		{"epoch millis", RawDoc{"v": float64(1742034600000)}, time.UnixMilli(1742034600000).UTC(), false},
		{"epoch seconds", RawDoc{"v": float64(1742034600)}, time.Unix(1742034600, 0).UTC(), false},
		{"list takes head", RawDoc{"v": []interface{}{"2025-03-15"}}, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), false},
		{"garbage yields nil", RawDoc{"v": "soon"}, time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.doc.Time("v")
			if tt.wantNil {
				if got != nil {
					t.Errorf("Time = %v, want nil", *got)
				}
				return
			}
			if got == nil {
				t.Fatal("Time = nil, want value")
			}
			if !got.Equal(tt.want) {
				t.Errorf("Time = %v, want %v", *got, tt.want)
			}
		})
	}
}

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"45233120", "45233120"},
		{"45.23.31.20-7", "452331207"},
		{"be2 34", "BE234"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := normalizeCode(tt.in); got != tt.want {
			t.Errorf("normalizeCode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCodeOf(t *testing.T) {
	if got := codeOf(map[string]interface{}{"code": "45000000", "label": "Construction"}); got != "45000000" {
		t.Errorf("codeOf(object) = %q", got)
	}
	if got := codeOf("45-00"); got != "4500" {
		t.Errorf("codeOf(scalar) = %q", got)
	}
	if got := codeOf(nil); got != "" {
		t.Errorf("codeOf(nil) = %q", got)
	}
}
