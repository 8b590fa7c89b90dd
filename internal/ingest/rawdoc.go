package ingest

import (
	"strconv"
	"strings"
	"time"
)

// RawDoc is the schema-less payload wrapper both upstream APIs hand us.
// Extraction never raises: every accessor is a best-effort read that
// returns the zero value when the shape is not what we hoped for.
type RawDoc map[string]interface{}

// langPreference is the fixed resolution order for multilingual fields.
var langPreference = []string{"nl", "fr", "en", "eng", "de", "NL", "FR", "ENG", "EN", "DE"}

// dig walks a dot-separated path through nested maps. Array hops take the
// first element, which is what both sources mean by "the" value.
func (d RawDoc) dig(path string) interface{} {
	var cur interface{} = map[string]interface{}(d)
	for _, key := range strings.Split(path, ".") {
		if list, ok := cur.([]interface{}); ok {
			if len(list) == 0 {
				return nil
			}
			cur = list[0]
		}
		m, ok := toMap(cur)
		if !ok {
			return nil
		}
		cur = m[key]
	}
	return cur
}

func toMap(v interface{}) (map[string]interface{}, bool) {
	switch typed := v.(type) {
	case map[string]interface{}:
		return typed, true
	case RawDoc:
		return map[string]interface{}(typed), true
	default:
		return nil, false
	}
}

// String reads one scalar as a trimmed string.
func (d RawDoc) String(path string) string {
	return stringify(d.dig(path))
}

// FirstString walks the candidate paths in order and returns the first
// non-empty value. The mappers are built from these cascades.
func (d RawDoc) FirstString(paths ...string) string {
	for _, p := range paths {
		if v := d.String(p); v != "" {
			return v
		}
	}
	return ""
}

// LangString resolves a multilingual field. The value may be a plain
// string, a map of language → string, or a map of language → list; lists
// contribute their first element.
func (d RawDoc) LangString(path string) string {
	v := d.dig(path)
	if v == nil {
		return ""
	}
	if s := scalarString(v); s != "" {
		return s
	}
	m, ok := toMap(v)
	if !ok {
		return ""
	}
	for _, lang := range langPreference {
		if s := scalarString(m[lang]); s != "" {
			return s
		}
	}
	for _, candidate := range m {
		if s := scalarString(candidate); s != "" {
			return s
		}
	}
	return ""
}

// FirstLangString is the multilingual variant of FirstString.
func (d RawDoc) FirstLangString(paths ...string) string {
	for _, p := range paths {
		if v := d.LangString(p); v != "" {
			return v
		}
	}
	return ""
}

// LangMap flattens a multilingual field into language → string, lowering
// language keys and taking list heads.
func (d RawDoc) LangMap(path string) map[string]string {
	m, ok := toMap(d.dig(path))
	if !ok {
		return nil
	}
	out := make(map[string]string, len(m))
	for lang, v := range m {
		if s := scalarString(v); s != "" {
			out[normalizeLang(lang)] = s
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func normalizeLang(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "eng" {
		return "en"
	}
	if len(lang) > 2 {
		lang = lang[:2]
	}
	return lang
}

// Doc reads a nested object.
func (d RawDoc) Doc(path string) RawDoc {
	m, ok := toMap(d.dig(path))
	if !ok {
		return nil
	}
	return RawDoc(m)
}

// Slice reads a list value; a scalar is promoted to a one-element list.
func (d RawDoc) Slice(path string) []interface{} {
	v := d.dig(path)
	if v == nil {
		return nil
	}
	if list, ok := v.([]interface{}); ok {
		return list
	}
	return []interface{}{v}
}

// StringSlice reads a list of scalars, dropping empties.
func (d RawDoc) StringSlice(path string) []string {
	var out []string
	for _, v := range d.Slice(path) {
		if s := stringify(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Float reads a numeric value. String forms tolerate thousands separators
// and decimal commas; failure yields nil, never an error.
func (d RawDoc) Float(paths ...string) *float64 {
	for _, p := range paths {
		if f := parseFloatLoose(d.dig(p)); f != nil {
			return f
		}
	}
	return nil
}

// Int reads an integer the same loose way.
func (d RawDoc) Int(paths ...string) *int {
	for _, p := range paths {
		if f := parseFloatLoose(d.dig(p)); f != nil {
			n := int(*f)
			return &n
		}
	}
	return nil
}

// Time reads a timestamp: RFC3339, ISO date with or without time-of-day,
// or epoch milliseconds. Unparseable input yields nil.
func (d RawDoc) Time(paths ...string) *time.Time {
	for _, p := range paths {
		if t := parseTimeLoose(d.dig(p)); t != nil {
			return t
		}
	}
	return nil
}

func scalarString(v interface{}) string {
	if list, ok := v.([]interface{}); ok {
		if len(list) == 0 {
			return ""
		}
		v = list[0]
	}
	return stringify(v)
}

func stringify(v interface{}) string {
	switch typed := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(typed)
	case float64:
		if typed == float64(int64(typed)) {
			return strconv.FormatInt(int64(typed), 10)
		}
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case int:
		return strconv.Itoa(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	case bool:
		return strconv.FormatBool(typed)
	default:
		return ""
	}
}

func parseFloatLoose(v interface{}) *float64 {
	switch typed := v.(type) {
	case float64:
		return &typed
	case int:
		f := float64(typed)
		return &f
	case int64:
		f := float64(typed)
		return &f
	case string:
		s := strings.TrimSpace(typed)
		if s == "" {
			return nil
		}
		s = strings.ReplaceAll(s, " ", "")
		// "1.234.567,89" and "1,234,567.89" both occur upstream.
		if strings.Contains(s, ",") && strings.Contains(s, ".") {
			if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
				s = strings.ReplaceAll(s, ".", "")
				s = strings.Replace(s, ",", ".", 1)
			} else {
				s = strings.ReplaceAll(s, ",", "")
			}
		} else if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return &f
	case map[string]interface{}:
		// Amount objects: {"amount": ..., "currency": ...}
		return parseFloatLoose(typed["amount"])
	default:
		return nil
	}
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02Z07:00",
	"2006-01-02",
	"02/01/2006",
}

func parseTimeLoose(v interface{}) *time.Time {
	switch typed := v.(type) {
	case float64:
		// Epoch milliseconds (the EU portal's favorite date encoding).
		if typed > 1e11 {
			t := time.UnixMilli(int64(typed)).UTC()
			return &t
		}
		if typed > 1e8 {
			t := time.Unix(int64(typed), 0).UTC()
			return &t
		}
		return nil
	case int64:
		return parseTimeLoose(float64(typed))
	case string:
		s := strings.TrimSpace(typed)
		if s == "" {
			return nil
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				t = t.UTC()
				return &t
			}
		}
		return nil
	case []interface{}:
		if len(typed) == 0 {
			return nil
		}
		return parseTimeLoose(typed[0])
	default:
		return nil
	}
}

// normalizeCode strips the separator characters CPV and NUTS codes show up
// with ("45.23.31.20-7" vs "45233120"), keeping prefix checks uniform.
func normalizeCode(code string) string {
	var b strings.Builder
	for _, r := range code {
		if (r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') {
			b.WriteRune(r)
		}
	}
	return strings.ToUpper(b.String())
}

// codeOf extracts a classification code from either a scalar or an object
// with a "code" field.
func codeOf(v interface{}) string {
	if m, ok := toMap(v); ok {
		return normalizeCode(stringify(m["code"]))
	}
	return normalizeCode(scalarString(v))
}
