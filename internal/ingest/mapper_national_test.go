package ingest

import (
	"testing"
	"time"
)

func nationalSearchItem() RawDoc {
	return RawDoc{
		"publicationWorkspaceId": "WS-2025-001",
		"type":                   "contractNotice",
		"title": map[string]interface{}{
			"nl": "Wegenwerken Gent fase 2",
			"fr": "Travaux routiers Gand phase 2",
		},
		"dossier": map[string]interface{}{
			"id":          "DOS-555",
			"procedureId": "PROC-9",
		},
		"cpvMain":         map[string]interface{}{"code": "45233120"},
		"publicationDate": "2025-03-01",
		"status":          "PUBLISHED",
	}
}

func TestMapNational(t *testing.T) {
	detail := RawDoc{
		"description": map[string]interface{}{
			"nl": "<p>Heraanleg van de <b>N60</b> tussen km 4 en 9.</p>",
		},
		"submissionDeadline": "2025-04-15T12:00:00Z",
		"estimatedValue":     map[string]interface{}{"amount": "1.250.000,00", "currency": "EUR"},
		"organisation": map[string]interface{}{
			"name": map[string]interface{}{"nl": "Stad Gent", "fr": "Ville de Gand"},
		},
		"nutsCodes":     []interface{}{"BE234"},
		"cpvAdditional": []interface{}{map[string]interface{}{"code": "45233120"}, "45310000"},
		"lots": []interface{}{
			map[string]interface{}{
				"number": "1",
				"title":  map[string]interface{}{"nl": "Rijweg"},
			},
			map[string]interface{}{
				"number":      "2",
				"title":       map[string]interface{}{"nl": "Fietspaden"},
				"description": map[string]interface{}{"nl": "Aanleg vrijliggende fietspaden"},
			},
		},
	}

	n := MapNational(nationalSearchItem(), detail)

	if n.SourceID != "WS-2025-001" {
		t.Errorf("SourceID = %q", n.SourceID)
	}
	if n.PublicationWorkspaceID != "WS-2025-001" {
		t.Errorf("PublicationWorkspaceID = %q", n.PublicationWorkspaceID)
	}
	if n.DossierID != "DOS-555" {
		t.Errorf("DossierID = %q", n.DossierID)
	}
	if n.ProcedureID != "PROC-9" {
		t.Errorf("ProcedureID = %q", n.ProcedureID)
	}
	if n.Title != "Wegenwerken Gent fase 2" {
		t.Errorf("Title = %q", n.Title)
	}
	if n.NoticeType != "contract" {
		t.Errorf("NoticeType = %q", n.NoticeType)
	}
	if n.Description != "Heraanleg van de N60 tussen km 4 en 9." {
		t.Errorf("Description = %q, html should be flattened", n.Description)
	}
	if n.CPVCode != "45233120" {
		t.Errorf("CPVCode = %q", n.CPVCode)
	}
	// The additional list must not repeat the main code.
	if len(n.AdditionalCPVs) != 1 || n.AdditionalCPVs[0] != "45310000" {
		t.Errorf("AdditionalCPVs = %v", n.AdditionalCPVs)
	}
	if len(n.NUTSCodes) != 1 || n.NUTSCodes[0] != "BE234" {
		t.Errorf("NUTSCodes = %v", n.NUTSCodes)
	}
	if n.EstimatedValue == nil || *n.EstimatedValue != 1250000 {
		t.Errorf("EstimatedValue = %v", n.EstimatedValue)
	}
	if n.Currency != "EUR" {
		t.Errorf("Currency = %q", n.Currency)
	}
	if n.OrganisationName() != "Stad Gent" {
		t.Errorf("OrganisationName = %q", n.OrganisationName())
	}
	if n.Deadline == nil || !n.Deadline.Equal(time.Date(2025, 4, 15, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("Deadline = %v", n.Deadline)
	}
	if len(n.Lots) != 2 || n.Lots[1].Description != "Aanleg vrijliggende fietspaden" {
		t.Errorf("Lots = %+v", n.Lots)
	}
	if n.URL != "https://www.publicprocurement.be/publication-workspaces/WS-2025-001" {
		t.Errorf("URL = %q", n.URL)
	}
	if len(n.RawData) == 0 {
		t.Error("RawData should carry the merged payload")
	}
}

func TestMapNationalWithoutDetail(t *testing.T) {
	n := MapNational(nationalSearchItem(), nil)
	if n.SourceID != "WS-2025-001" {
		t.Errorf("SourceID = %q", n.SourceID)
	}
	if n.Title != "Wegenwerken Gent fase 2" {
		t.Errorf("Title = %q", n.Title)
	}
	if n.Description != "" {
		t.Errorf("Description = %q, search item has none", n.Description)
	}
}

func TestMapNationalIdentityFallbacks(t *testing.T) {
	tests := []struct {
		name string
		doc  RawDoc
		want string
	}{
		{"publicationId fallback", RawDoc{"publicationId": "PUB-7"}, "PUB-7"},
		{"bare id fallback", RawDoc{"id": "X-1"}, "X-1"},
		{"no identity at all", RawDoc{"title": "orphan"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := MapNational(tt.doc, nil)
			if n.SourceID != tt.want {
				t.Errorf("SourceID = %q, want %q", n.SourceID, tt.want)
			}
		})
	}
}

func TestNormalizeNationalNoticeType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"contractAwardNotice", "award"},
		{"awardNotice", "award"},
		{"resultNotice", "award"},
		{"contractNotice", "contract"},
		{"priorInformationNotice", "priorInformationNotice"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := normalizeNationalNoticeType(tt.in); got != tt.want {
			t.Errorf("normalizeNationalNoticeType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
