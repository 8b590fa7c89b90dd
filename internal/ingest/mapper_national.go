package ingest

import (
	"fmt"

	"github.com/bverbist/tenderwatch/internal/models"
)

// MapNational turns one raw national e-Procurement search item, plus an
// optional detail payload, into canonical notice attributes. It is a pure
// transform: malformed input degrades to empty fields, never to an error.
func MapNational(item RawDoc, detail RawDoc) models.Notice {
	doc := overlay(item, detail)

	n := models.Notice{
		Source: models.SourceNational,
		SourceID: doc.FirstString(
			"publicationWorkspaceId",
			"publicationId",
			"id",
		),
		DossierID: doc.FirstString(
			"dossier.id",
			"dossierId",
			"dossierNumber",
		),
		ProcedureID: doc.FirstString(
			"procedure.id",
			"procedureId",
			"dossier.procedureId",
		),
		Title: htmlToText(doc.FirstLangString(
			"title",
			"publicationTitle",
			"dossier.title",
		)),
		Description: htmlToText(doc.FirstLangString(
			"description",
			"shortDescription",
			"dossier.description",
		)),
		NoticeType: normalizeNationalNoticeType(doc.FirstString(
			"type",
			"publicationType",
			"noticeType",
		)),
		FormType: doc.FirstString("formType", "form.type", "standardFormType"),
		CPVCode: codeOf(doc.dig("cpvMain")),
		Status:  doc.FirstString("status", "publicationStatus", "dossier.status"),
		Currency: doc.FirstString(
			"estimatedValue.currency",
			"estimatedTotalValue.currency",
			"value.currency",
		),
		PublicationDate: doc.Time("publicationDate", "datePublication", "publishedAt"),
		Deadline: doc.Time(
			"submissionDeadline",
			"deadlineReceiptTenders",
			"dossier.submissionDeadline",
		),
		EstimatedValue: doc.Float(
			"estimatedValue",
			"estimatedTotalValue",
			"value",
		),
		OrganisationNames: firstLangMap(doc,
			"organisation.name",
			"contractingAuthority.name",
			"buyer.name",
		),
		Keywords: doc.StringSlice("keywords"),
	}
	n.PublicationWorkspaceID = n.SourceID

	if n.CPVCode == "" {
		n.CPVCode = codeOf(doc.dig("cpv.mainCode"))
	}
	n.AdditionalCPVs = nationalAdditionalCPVs(doc)
	n.NUTSCodes = nationalRegionCodes(doc)
	n.Lots = nationalLots(doc)

	n.URL = doc.FirstString("url", "publicationUrl")
	if n.URL == "" && n.SourceID != "" {
		n.URL = fmt.Sprintf("https://www.publicprocurement.be/publication-workspaces/%s", n.SourceID)
	}

	n.Title = sanitizeUTF8(n.Title)
	n.Description = sanitizeUTF8(n.Description)
	n.RawData = map[string]interface{}(doc)
	return n
}

// overlay merges the richer detail payload over the search item; detail
// keys win because the detail document is the more complete payload.
func overlay(item RawDoc, detail RawDoc) RawDoc {
	if len(detail) == 0 {
		return item
	}
	merged := make(RawDoc, len(item)+len(detail))
	for k, v := range item {
		merged[k] = v
	}
	for k, v := range detail {
		merged[k] = v
	}
	return merged
}

func firstLangMap(doc RawDoc, paths ...string) map[string]string {
	for _, p := range paths {
		if m := doc.LangMap(p); len(m) > 0 {
			return m
		}
		// A plain string organisation name still deserves a slot.
		if s := doc.String(p); s != "" {
			return map[string]string{"nl": s}
		}
	}
	return nil
}

func normalizeNationalNoticeType(t string) string {
	switch t {
	case "contractAwardNotice", "awardNotice", "resultNotice":
		return "award"
	case "contractNotice", "publicationNotice", "":
		if t == "" {
			return ""
		}
		return "contract"
	default:
		return t
	}
}

func nationalAdditionalCPVs(doc RawDoc) []string {
	var out []string
	seen := map[string]struct{}{}
	main := codeOf(doc.dig("cpvMain"))
	for _, path := range []string{"cpvAdditional", "cpvCodes", "cpv.additionalCodes"} {
		for _, v := range doc.Slice(path) {
			code := codeOf(v)
			if code == "" || code == main {
				continue
			}
			if _, ok := seen[code]; ok {
				continue
			}
			seen[code] = struct{}{}
			out = append(out, code)
		}
	}
	return out
}

func nationalRegionCodes(doc RawDoc) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, path := range []string{"nutsCodes", "placeOfPerformance", "dossier.nutsCodes"} {
		for _, v := range doc.Slice(path) {
			code := codeOf(v)
			if code == "" {
				continue
			}
			if _, ok := seen[code]; ok {
				continue
			}
			seen[code] = struct{}{}
			out = append(out, code)
		}
	}
	return out
}

func nationalLots(doc RawDoc) []models.Lot {
	var lots []models.Lot
	for _, v := range doc.Slice("lots") {
		m, ok := toMap(v)
		if !ok {
			continue
		}
		lotDoc := RawDoc(m)
		lot := models.Lot{
			LotNumber:   lotDoc.FirstString("number", "lotNumber", "id"),
			Title:       htmlToText(lotDoc.FirstLangString("title", "name")),
			Description: htmlToText(lotDoc.FirstLangString("description", "shortDescription")),
		}
		if lot.LotNumber == "" && lot.Title == "" && lot.Description == "" {
			continue
		}
		lots = append(lots, lot)
	}
	return lots
}
