package ingest

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bverbist/tenderwatch/internal/models"
)

func TestMergeFillEmpty(t *testing.T) {
	existingValue := 100000.0
	derivedValue := 999999.0
	deadline := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	existing := models.Notice{
		Title:          "Bestaande titel",
		Description:    "",
		CPVCode:        "45000000",
		EstimatedValue: &existingValue,
	}
	derived := models.Notice{
		Title:          "Nieuwe titel",
		Description:    "Nieuwe beschrijving",
		CPVCode:        "99999999",
		EstimatedValue: &derivedValue,
		Deadline:       &deadline,
		NUTSCodes:      []string{"BE234"},
		Lots:           []models.Lot{{LotNumber: "1", Title: "Perceel 1"}},
	}

	merged, filled := mergeFillEmpty(existing, derived)

	// Non-empty existing fields must survive untouched.
	if merged.Title != "Bestaande titel" {
		t.Errorf("Title = %q, existing value clobbered", merged.Title)
	}
	if merged.CPVCode != "45000000" {
		t.Errorf("CPVCode = %q, existing value clobbered", merged.CPVCode)
	}
	if *merged.EstimatedValue != 100000.0 {
		t.Errorf("EstimatedValue = %v, existing value clobbered", *merged.EstimatedValue)
	}

	// Empty fields must be filled and reported.
	if merged.Description != "Nieuwe beschrijving" {
		t.Errorf("Description = %q", merged.Description)
	}
	if merged.Deadline == nil || !merged.Deadline.Equal(deadline) {
		t.Errorf("Deadline = %v", merged.Deadline)
	}
	if len(merged.NUTSCodes) != 1 {
		t.Errorf("NUTSCodes = %v", merged.NUTSCodes)
	}
	if len(merged.Lots) != 1 {
		t.Errorf("Lots = %v", merged.Lots)
	}

	wantFilled := map[string]bool{"description": true, "deadline": true, "nuts_codes": true, "lots": true}
	if len(filled) != len(wantFilled) {
		t.Errorf("filled = %v, want exactly %v", filled, wantFilled)
	}
	for _, f := range filled {
		if !wantFilled[f] {
			t.Errorf("unexpected filled field %q", f)
		}
	}
}

func TestMergeFillEmptyNoChanges(t *testing.T) {
	existing := models.Notice{Title: "A", Description: "B"}
	_, filled := mergeFillEmpty(existing, existing)
	if len(filled) != 0 {
		t.Errorf("filled = %v, want none", filled)
	}
}

func TestApplyAwardFields(t *testing.T) {
	n := &models.Notice{AwardWinnerName: "Reeds gekend NV"}
	filled := applyAwardFields(n, map[string]interface{}{
		"award_winner_name":       "Andere BV",
		"award_value":             "1.500.000,00",
		"award_date":              "2025-02-20",
		"number_tenders_received": float64(4),
		"award_criteria_json":     map[string]interface{}{"price": 60, "quality": 40},
	})

	if n.AwardWinnerName != "Reeds gekend NV" {
		t.Errorf("AwardWinnerName = %q, existing value clobbered", n.AwardWinnerName)
	}
	if n.AwardValue == nil || *n.AwardValue != 1500000 {
		t.Errorf("AwardValue = %v", n.AwardValue)
	}
	if n.AwardDate == nil || n.AwardDate.Day() != 20 {
		t.Errorf("AwardDate = %v", n.AwardDate)
	}
	if n.NumberTendersReceived == nil || *n.NumberTendersReceived != 4 {
		t.Errorf("NumberTendersReceived = %v", n.NumberTendersReceived)
	}
	if len(n.AwardCriteria) != 2 {
		t.Errorf("AwardCriteria = %v", n.AwardCriteria)
	}
	if len(filled) != 4 {
		t.Errorf("filled = %v, want 4 entries", filled)
	}
}

func TestApplyAwardFieldsAbsentKeys(t *testing.T) {
	n := &models.Notice{}
	filled := applyAwardFields(n, map[string]interface{}{})
	if len(filled) != 0 {
		t.Errorf("filled = %v, want none for empty extractor output", filled)
	}
}

func TestMergeAwardIntoParent(t *testing.T) {
	awardValue := 750000.0
	orphan := models.Notice{
		ID:              uuid.New(),
		SourceID:        "AWARD-1",
		AwardWinnerName: "Jansen Bouw NV",
		AwardValue:      &awardValue,
		RawData:         map[string]interface{}{"notice-type": "can-standard"},
	}
	parent := &models.Notice{SourceID: "WS-1"}

	filled := mergeAwardIntoParent(parent, orphan)

	if parent.AwardWinnerName != "Jansen Bouw NV" {
		t.Errorf("AwardWinnerName = %q", parent.AwardWinnerName)
	}
	if parent.AwardValue == nil || *parent.AwardValue != 750000 {
		t.Errorf("AwardValue = %v", parent.AwardValue)
	}
	if len(filled) != 2 {
		t.Errorf("filled = %v", filled)
	}

	// The orphan payload must stay traceable inside the parent.
	embedded, ok := parent.RawData["merged_award_notice"].(map[string]interface{})
	if !ok {
		t.Fatal("merged_award_notice not recorded")
	}
	if embedded["source_id"] != "AWARD-1" {
		t.Errorf("embedded source_id = %v", embedded["source_id"])
	}
}
