package extract

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/inspection-extractor/constants"
	"github.com/joseph-ayodele/inspection-extractor/internal/catalog"
)

var (
	// \s alone misses \v and Unicode spaces such as NBSP and U+3000.
	reSpaceRun = regexp.MustCompile(`[\s\v\p{Z}]+`)
	reLabelSep = regexp.MustCompile(`^[:：\s\v\p{Z}]+`)
)

// RawMatch is a recognized field label and the unprocessed text after it.
type RawMatch struct {
	Field constants.Field
	Raw   string
}

// CleanLine collapses whitespace runs to a single space and trims the line.
func CleanLine(line string) string {
	return strings.TrimSpace(reSpaceRun.ReplaceAllString(line, " "))
}

// Matcher finds the catalog field a cleaned line introduces.
type Matcher struct {
	catalog *catalog.Catalog
}

func NewMatcher(c *catalog.Catalog) *Matcher {
	if c == nil {
		c = catalog.Default()
	}
	return &Matcher{catalog: c}
}

// Match tries every field in catalog order and stops at the first hit.
// The literal identifier prefix is tested before the field's aliases.
func (m *Matcher) Match(line string) (RawMatch, bool) {
	if line == "" {
		return RawMatch{}, false
	}
	for _, spec := range m.catalog.Specs() {
		id := string(spec.ID)
		if strings.HasPrefix(line, id) {
			return RawMatch{Field: spec.ID, Raw: stripLabelSep(line[len(id):])}, true
		}
		for _, re := range spec.Aliases {
			if sm := re.FindStringSubmatch(line); sm != nil {
				return RawMatch{Field: spec.ID, Raw: stripLabelSep(sm[1])}, true
			}
		}
	}
	return RawMatch{}, false
}

func stripLabelSep(s string) string {
	return reLabelSep.ReplaceAllString(strings.TrimSpace(s), "")
}
