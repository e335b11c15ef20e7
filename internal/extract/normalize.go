package extract

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/inspection-extractor/constants"
	"github.com/joseph-ayodele/inspection-extractor/internal/catalog"
)

var (
	reDate         = regexp.MustCompile(`(\d{4})-(\d{1,2})-(\d{1,2})`)
	reTime         = regexp.MustCompile(`\d{1,2}:\d{2}`)
	reRangeMicron  = regexp.MustCompile(`(\d+-\d+)\s*um`)
	reDustGrade    = regexp.MustCompile(`[A-Za-z0-9]+-[0-9]+`)
	reHyphenID     = regexp.MustCompile(`[A-Za-z0-9]+-[A-Za-z0-9]+`)
	reNumber       = regexp.MustCompile(`-?\d+(?:\.\d+)?(?:[eE][+-]?\d+)?`)
	reDoubleDash   = regexp.MustCompile(`\s*-\s*-\s*`)
	reTrailingDash = regexp.MustCompile(`\s*-\s*$`)
	reBlankMarker  = regexp.MustCompile(`^[\s-]*$`)
)

// misreadISO is how OCR tends to read "ISO" in dust grades like ISO8502-3.
const misreadISO = "1S0"

// weatherKeywords is checked in order; the first keyword found wins.
var weatherKeywords = []struct {
	keyword, canonical string
}{
	{"fine", "晴"},
	{"cloud", "曇"},
	{"rain", "雨"},
}

// Value is a normalized field value. Multi-output fields also carry one
// entry in Subs per sub-field column.
type Value struct {
	Text string
	Subs []string
}

// Rule turns a trimmed, non-empty raw value into its canonical text.
type Rule func(spec catalog.FieldSpec, raw string) string

// Normalizer dispatches raw values to per-field rules.
type Normalizer struct {
	catalog  *catalog.Catalog
	rules    map[constants.Field]Rule
	fallback Rule
}

func NewNormalizer(c *catalog.Catalog) *Normalizer {
	if c == nil {
		c = catalog.Default()
	}
	return &Normalizer{
		catalog: c,
		rules: map[constants.Field]Rule{
			constants.InspectionDate: normalizeDate,
			constants.Weather:        normalizeWeather,
			constants.SurfaceProfile: normalizeSurfaceProfile,
			constants.Dust:           normalizeDust,
			constants.IDNumber:       normalizeIDNumber,
			constants.InspectionTime: normalizeTime,
		},
		fallback: normalizeDefault,
	}
}

// Normalize never fails: a missing pattern falls back to the cleaned text.
func (n *Normalizer) Normalize(id constants.Field, raw string) Value {
	spec, ok := n.catalog.Lookup(id)
	if !ok {
		spec = catalog.FieldSpec{ID: id}
	}

	var text string
	if raw = strings.TrimSpace(raw); raw != "" {
		rule, ok := n.rules[id]
		if !ok {
			rule = n.fallback
		}
		text = rule(spec, raw)
	}

	v := Value{Text: text}
	if spec.OutputsMultiple() {
		v.Subs = splitSubs(text, len(spec.SubFields))
	}
	return v
}

// splitSubs puts the i-th "/" segment into sub-field i. Text without a
// slash goes entirely into the first sub-field.
func splitSubs(text string, n int) []string {
	subs := make([]string, n)
	if !strings.Contains(text, "/") {
		subs[0] = text
		return subs
	}
	parts := strings.Split(text, "/")
	for i := 0; i < n && i < len(parts); i++ {
		subs[i] = parts[i]
	}
	return subs
}

func normalizeDate(_ catalog.FieldSpec, raw string) string {
	m := reDate.FindStringSubmatch(raw)
	if m == nil {
		return raw
	}
	return m[1] + "/" + pad2(m[2]) + "/" + pad2(m[3])
}

func pad2(s string) string {
	if len(s) < 2 {
		return "0" + s
	}
	return s
}

func normalizeWeather(_ catalog.FieldSpec, raw string) string {
	var kept []string
	for _, seg := range strings.Split(raw, "/") {
		seg = strings.TrimSpace(seg)
		if reBlankMarker.MatchString(seg) {
			continue
		}
		kept = append(kept, weatherSegment(seg))
	}
	return strings.Join(kept, "/")
}

func weatherSegment(seg string) string {
	lower := strings.ToLower(seg)
	for _, kw := range weatherKeywords {
		if strings.Contains(lower, kw.keyword) {
			return kw.canonical
		}
	}
	return seg
}

func normalizeSurfaceProfile(_ catalog.FieldSpec, raw string) string {
	m := reRangeMicron.FindStringSubmatch(raw)
	if m == nil {
		return raw
	}
	return m[1] + " µm"
}

func normalizeDust(_ catalog.FieldSpec, raw string) string {
	grade := reDustGrade.FindString(raw)
	if grade == "" {
		return raw
	}
	if strings.HasPrefix(grade, misreadISO) {
		grade = "ISO" + grade[len(misreadISO):]
	}
	return grade
}

func normalizeIDNumber(_ catalog.FieldSpec, raw string) string {
	if id := reHyphenID.FindString(raw); id != "" {
		return id
	}
	return raw
}

func normalizeTime(_ catalog.FieldSpec, raw string) string {
	if t := reTime.FindString(raw); t != "" {
		return t
	}
	return raw
}

// normalizeDefault drops blank markers ("- -" and a trailing lone "-"). A
// lone "-" is treated as blank, not as a negative sign.
func normalizeDefault(spec catalog.FieldSpec, raw string) string {
	text := reDoubleDash.ReplaceAllString(raw, "")
	text = reTrailingDash.ReplaceAllString(text, "")
	if !spec.Numeric {
		return text
	}
	if num := reNumber.FindString(text); num != "" {
		return num
	}
	return text
}
