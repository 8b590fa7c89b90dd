package ingest

import "testing"

func tedItem() RawDoc {
	return RawDoc{
		"publication-number": "00123456-2025",
		"notice-type":        "cn-standard",
		"notice-title": map[string]interface{}{
			"fra": []interface{}{"Travaux de voirie à Liège"},
			"eng": []interface{}{"Road works in Liège"},
		},
		"description-lot": map[string]interface{}{
			"fra": []interface{}{"Réfection de la chaussée et des trottoirs"},
		},
		"buyer-name": map[string]interface{}{
			"fra": []interface{}{"Ville de Liège"},
		},
		"classification-cpv":   []interface{}{"45233120", "45233140"},
		"place-of-performance": []interface{}{"anyw", "BE332"},
		"publication-date":     "2025-03-02T00:00:00Z",
		"links": map[string]interface{}{
			"html": map[string]interface{}{
				"ENG": "https://ted.europa.eu/en/notice/-/detail/123456-2025",
				"FRA": "https://ted.europa.eu/fr/notice/-/detail/123456-2025",
			},
		},
	}
}

func TestMapTED(t *testing.T) {
	n := MapTED(tedItem())

	if n.SourceID != "00123456-2025" {
		t.Errorf("SourceID = %q", n.SourceID)
	}
	if n.NoticeType != "contract" {
		t.Errorf("NoticeType = %q", n.NoticeType)
	}
	// fra is not in the preference list head, but the first language with
	// content must still win over nothing.
	if n.Title == "" {
		t.Error("Title not resolved")
	}
	if n.Description != "Réfection de la chaussée et des trottoirs" {
		t.Errorf("Description = %q", n.Description)
	}
	if n.CPVCode != "45233120" {
		t.Errorf("CPVCode = %q", n.CPVCode)
	}
	if len(n.AdditionalCPVs) != 1 || n.AdditionalCPVs[0] != "45233140" {
		t.Errorf("AdditionalCPVs = %v", n.AdditionalCPVs)
	}
	// "anyw" is a placeholder for anywhere, not a region.
	if len(n.NUTSCodes) != 1 || n.NUTSCodes[0] != "BE332" {
		t.Errorf("NUTSCodes = %v", n.NUTSCodes)
	}
	if n.URL == "" {
		t.Error("URL not resolved from links.html")
	}
	if n.PublicationDate == nil {
		t.Error("PublicationDate not parsed")
	}
}

func TestMapTEDFallbackURL(t *testing.T) {
	n := MapTED(RawDoc{"publication-number": "777-2025"})
	if n.URL != "https://ted.europa.eu/en/notice/-/detail/777-2025" {
		t.Errorf("URL = %q", n.URL)
	}
}

func TestNormalizeTEDNoticeType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"can-standard", "award"},
		{"can-social", "award"},
		{"result", "award"},
		{"cn-standard", "contract"},
		{"competition", "contract"},
		{"pin-only", "planning"},
		{"planning", "planning"},
		{"veat", "veat"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := normalizeTEDNoticeType(tt.in); got != tt.want {
			t.Errorf("normalizeTEDNoticeType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
