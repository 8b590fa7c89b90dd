package ingest

import (
	"fmt"
	"strings"

	"github.com/bverbist/tenderwatch/internal/models"
)

// MapTED turns one raw TED search API item into canonical notice
// attributes. TED uses kebab-case business-term keys with per-language
// maps whose values are usually lists.
func MapTED(item RawDoc) models.Notice {
	n := models.Notice{
		Source: models.SourceEU,
		SourceID: item.FirstString(
			"publication-number",
			"publicationNumber",
			"ND",
		),
		DossierID: item.FirstString(
			"procedure-identifier",
			"contract-folder-id",
			"reference-number",
		),
		ProcedureID: item.FirstString(
			"procedure-identifier",
			"procedure-id",
		),
		Title: htmlToText(item.FirstLangString(
			"notice-title",
			"title",
			"title-proc",
		)),
		Description: htmlToText(item.FirstLangString(
			"description-proc",
			"description-lot",
			"description",
		)),
		NoticeType: normalizeTEDNoticeType(
			item.FirstString("notice-type", "form-type"),
		),
		FormType: item.FirstString("form-type", "notice-subtype"),
		Status:   item.FirstString("notice-status", "status"),
		Currency: item.FirstString(
			"estimated-value-cur-proc.currency",
			"total-value.currency",
			"currency",
		),
		PublicationDate: item.Time("publication-date", "dispatch-date"),
		Deadline: item.Time(
			"deadline-receipt-tenders-date-lot",
			"deadline-date-lot",
			"deadline",
		),
		EstimatedValue: item.Float(
			"estimated-value-proc",
			"estimated-value-cur-proc",
			"total-value",
		),
		OrganisationNames: tedBuyerNames(item),
		Keywords:          item.StringSlice("keywords"),
	}

	codes := tedClassificationCodes(item)
	if len(codes) > 0 {
		n.CPVCode = codes[0]
		n.AdditionalCPVs = codes[1:]
	}
	n.NUTSCodes = tedRegionCodes(item)
	n.Lots = tedLots(item)

	n.URL = tedCanonicalURL(item, n.SourceID)
	n.Title = sanitizeUTF8(n.Title)
	n.Description = sanitizeUTF8(n.Description)
	n.RawData = map[string]interface{}(item)
	return n
}

// normalizeTEDNoticeType folds the eForms notice-type vocabulary onto the
// canonical contract/award distinction.
func normalizeTEDNoticeType(t string) string {
	switch {
	case t == "":
		return ""
	case strings.HasPrefix(t, "can-"), t == "result", t == "cont-award":
		return "award"
	case strings.HasPrefix(t, "cn-"), t == "competition":
		return "contract"
	case strings.HasPrefix(t, "pin-"), t == "planning":
		return "planning"
	default:
		return t
	}
}

func tedBuyerNames(item RawDoc) map[string]string {
	for _, path := range []string{"buyer-name", "organisation-name-buyer", "buyer.name"} {
		if m := item.LangMap(path); len(m) > 0 {
			return m
		}
		if s := item.String(path); s != "" {
			return map[string]string{"en": s}
		}
	}
	return nil
}

func tedClassificationCodes(item RawDoc) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, path := range []string{"classification-cpv", "main-classification-proc", "additional-classification-proc"} {
		for _, v := range item.Slice(path) {
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

func tedRegionCodes(item RawDoc) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, path := range []string{"place-of-performance", "place-performance-nuts", "country-of-performance"} {
		for _, v := range item.Slice(path) {
			code := codeOf(v)
			if code == "" || strings.EqualFold(code, "anyw") {
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

func tedLots(item RawDoc) []models.Lot {
	var lots []models.Lot
	for _, v := range item.Slice("lots") {
		m, ok := toMap(v)
		if !ok {
			continue
		}
		lotDoc := RawDoc(m)
		lot := models.Lot{
			LotNumber:   lotDoc.FirstString("identifier", "lot-number", "id"),
			Title:       htmlToText(lotDoc.FirstLangString("title-lot", "title")),
			Description: htmlToText(lotDoc.FirstLangString("description-lot", "description")),
		}
		if lot.LotNumber == "" && lot.Title == "" && lot.Description == "" {
			continue
		}
		lots = append(lots, lot)
	}
	return lots
}

// tedCanonicalURL prefers the payload's own html link and falls back to
// the stable detail URL derived from the publication number.
func tedCanonicalURL(item RawDoc, publicationNumber string) string {
	if links := item.Doc("links"); links != nil {
		if html := links.Doc("html"); html != nil {
			for _, lang := range langPreference {
				if u := html.String(lang); u != "" {
					return u
				}
			}
			for _, v := range html {
				if u := stringify(v); u != "" {
					return u
				}
			}
		}
	}
	if publicationNumber == "" {
		return ""
	}
	return fmt.Sprintf("https://ted.europa.eu/en/notice/-/detail/%s", publicationNumber)
}
