package ingest

import (
	"time"

	"github.com/bverbist/tenderwatch/internal/models"
)

// mergeFillEmpty copies derived values into a copy of existing, but only
// where existing is empty. This is the invariant separating backfill from
// upsert: a value obtained from a richer source must never be clobbered
// by a re-derivation from the plain search payload. Returns the merged
// notice and the names of the fields that were filled.
func mergeFillEmpty(existing models.Notice, derived models.Notice) (models.Notice, []string) {
	out := existing
	var filled []string

	fillString := func(name string, dst *string, v string) {
		if *dst == "" && v != "" {
			*dst = v
			filled = append(filled, name)
		}
	}
	fillTime := func(name string, dst **time.Time, v *time.Time) {
		if *dst == nil && v != nil {
			*dst = v
			filled = append(filled, name)
		}
	}

	fillString("title", &out.Title, derived.Title)
	fillString("description", &out.Description, derived.Description)
	fillString("notice_type", &out.NoticeType, derived.NoticeType)
	fillString("form_type", &out.FormType, derived.FormType)
	fillString("cpv_code", &out.CPVCode, derived.CPVCode)
	fillString("dossier_id", &out.DossierID, derived.DossierID)
	fillString("procedure_id", &out.ProcedureID, derived.ProcedureID)
	fillString("currency", &out.Currency, derived.Currency)
	fillString("url", &out.URL, derived.URL)
	fillString("status", &out.Status, derived.Status)
	fillString("award_winner_name", &out.AwardWinnerName, derived.AwardWinnerName)

	fillTime("publication_date", &out.PublicationDate, derived.PublicationDate)
	fillTime("deadline", &out.Deadline, derived.Deadline)
	fillTime("award_date", &out.AwardDate, derived.AwardDate)

	if out.EstimatedValue == nil && derived.EstimatedValue != nil {
		out.EstimatedValue = derived.EstimatedValue
		filled = append(filled, "estimated_value")
	}
	if out.AwardValue == nil && derived.AwardValue != nil {
		out.AwardValue = derived.AwardValue
		filled = append(filled, "award_value")
	}
	if out.NumberTendersReceived == nil && derived.NumberTendersReceived != nil {
		out.NumberTendersReceived = derived.NumberTendersReceived
		filled = append(filled, "number_tenders_received")
	}
	if len(out.AwardCriteria) == 0 && len(derived.AwardCriteria) > 0 {
		out.AwardCriteria = derived.AwardCriteria
		filled = append(filled, "award_criteria")
	}
	if len(out.OrganisationNames) == 0 && len(derived.OrganisationNames) > 0 {
		out.OrganisationNames = derived.OrganisationNames
		filled = append(filled, "organisation_names")
	}
	if len(out.NUTSCodes) == 0 && len(derived.NUTSCodes) > 0 {
		out.NUTSCodes = derived.NUTSCodes
		filled = append(filled, "nuts_codes")
	}
	if len(out.AdditionalCPVs) == 0 && len(derived.AdditionalCPVs) > 0 {
		out.AdditionalCPVs = derived.AdditionalCPVs
		filled = append(filled, "additional_cpvs")
	}
	if len(out.Lots) == 0 && len(derived.Lots) > 0 {
		out.Lots = derived.Lots
		filled = append(filled, "lots")
	}

	return out, filled
}

// applyAwardFields fills still-empty award columns from the eForms
// extractor output. Absent keys mean "not determinable", so only present
// keys are considered at all.
func applyAwardFields(n *models.Notice, fields map[string]interface{}) []string {
	if len(fields) == 0 {
		return nil
	}
	var filled []string

	if v, ok := fields["award_winner_name"]; ok && n.AwardWinnerName == "" {
		if s := stringify(v); s != "" {
			n.AwardWinnerName = s
			filled = append(filled, "award_winner_name")
		}
	}
	if v, ok := fields["award_value"]; ok && n.AwardValue == nil {
		if f := parseFloatLoose(v); f != nil {
			n.AwardValue = f
			filled = append(filled, "award_value")
		}
	}
	if v, ok := fields["award_date"]; ok && n.AwardDate == nil {
		if t := parseTimeLoose(v); t != nil {
			n.AwardDate = t
			filled = append(filled, "award_date")
		}
	}
	if v, ok := fields["number_tenders_received"]; ok && n.NumberTendersReceived == nil {
		if f := parseFloatLoose(v); f != nil {
			count := int(*f)
			n.NumberTendersReceived = &count
			filled = append(filled, "number_tenders_received")
		}
	}
	if v, ok := fields["award_criteria_json"]; ok && len(n.AwardCriteria) == 0 {
		if m, isMap := toMap(v); isMap && len(m) > 0 {
			n.AwardCriteria = m
			filled = append(filled, "award_criteria")
		}
	}
	return filled
}

// mergeAwardIntoParent copies award fields from an orphan award notice
// into its parent contract notice, fill-if-empty only. The orphan itself
// is recorded inside the parent's raw payload for traceability.
func mergeAwardIntoParent(parent *models.Notice, orphan models.Notice) []string {
	var filled []string

	if parent.AwardWinnerName == "" && orphan.AwardWinnerName != "" {
		parent.AwardWinnerName = orphan.AwardWinnerName
		filled = append(filled, "award_winner_name")
	}
	if parent.AwardValue == nil && orphan.AwardValue != nil {
		parent.AwardValue = orphan.AwardValue
		filled = append(filled, "award_value")
	}
	if parent.AwardDate == nil && orphan.AwardDate != nil {
		parent.AwardDate = orphan.AwardDate
		filled = append(filled, "award_date")
	}
	if parent.NumberTendersReceived == nil && orphan.NumberTendersReceived != nil {
		parent.NumberTendersReceived = orphan.NumberTendersReceived
		filled = append(filled, "number_tenders_received")
	}
	if len(parent.AwardCriteria) == 0 && len(orphan.AwardCriteria) > 0 {
		parent.AwardCriteria = orphan.AwardCriteria
		filled = append(filled, "award_criteria")
	}

	if parent.RawData == nil {
		parent.RawData = map[string]interface{}{}
	}
	parent.RawData["merged_award_notice"] = map[string]interface{}{
		"source_id": orphan.SourceID,
		"notice_id": orphan.ID.String(),
		"raw_data":  orphan.RawData,
	}
	return filled
}
