package ingest

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bverbist/tenderwatch/internal/db"
	"github.com/bverbist/tenderwatch/internal/models"
)

func TestGroupDuplicates(t *testing.T) {
	day := func(d int) *time.Time {
		t := time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC)
		return &t
	}
	candidate := func(title, cpv string, pub *time.Time) db.DedupCandidate {
		return db.DedupCandidate{ID: uuid.New(), Title: title, CPVCode: cpv, PublicationDate: pub}
	}

	// Input arrives pre-sorted by (title, cpv, publication_date desc).
	a1 := candidate("Wegenwerken", "45233120", day(10))
	a2 := candidate("Wegenwerken", "45233120", day(5))
	a3 := candidate("Wegenwerken", "45233120", day(1))
	b1 := candidate("Wegenwerken", "71000000", day(8)) // same title, other cpv
	c1 := candidate("Schoonmaak", "90910000", day(9))  // singleton

	groups := groupDuplicates([]db.DedupCandidate{a1, a2, a3, b1, c1})

	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1 (singletons are not groups)", len(groups))
	}
	group := groups[0]
	if len(group) != 3 {
		t.Fatalf("group size = %d, want 3", len(group))
	}
	if group[0].ID != a1.ID {
		t.Error("newest candidate should rank first and be kept")
	}
	if group[1].ID != a2.ID || group[2].ID != a3.ID {
		t.Error("group order must follow input order")
	}
}

func TestGroupDuplicatesEmpty(t *testing.T) {
	if groups := groupDuplicates(nil); len(groups) != 0 {
		t.Errorf("groups = %v, want none", groups)
	}
}

func TestResolveProcedureID(t *testing.T) {
	tests := []struct {
		name   string
		notice models.Notice
		want   string
	}{
		{
			name:   "column wins",
			notice: models.Notice{ProcedureID: "PROC-1", RawData: map[string]interface{}{"procedureId": "PROC-raw"}},
			want:   "PROC-1",
		},
		{
			name:   "raw payload fallback",
			notice: models.Notice{RawData: map[string]interface{}{"procedureId": "PROC-raw"}},
			want:   "PROC-raw",
		},
		{
			name: "nested raw path",
			notice: models.Notice{RawData: map[string]interface{}{
				"dossier": map[string]interface{}{"procedureId": "PROC-nested"},
			}},
			want: "PROC-nested",
		},
		{
			name:   "ted business term",
			notice: models.Notice{RawData: map[string]interface{}{"procedure-identifier": "PROC-ted"}},
			want:   "PROC-ted",
		},
		{
			name:   "nothing to resolve",
			notice: models.Notice{},
			want:   "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveProcedureID(tt.notice); got != tt.want {
				t.Errorf("resolveProcedureID = %q, want %q", got, tt.want)
			}
		})
	}
}
