package extract

import (
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/inspection-extractor/constants"
	"github.com/joseph-ayodele/inspection-extractor/internal/catalog"
)

// PageRecord maps output column name to canonical value for one page.
type PageRecord map[string]string

// Document is one PageRecord per page that yielded at least one field.
type Document []PageRecord

// Assembler folds the lines of a page into a PageRecord.
type Assembler struct {
	catalog    *catalog.Catalog
	matcher    *Matcher
	normalizer *Normalizer
	logger     *slog.Logger
}

func NewAssembler(c *catalog.Catalog, logger *slog.Logger) *Assembler {
	if c == nil {
		c = catalog.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		catalog:    c,
		matcher:    NewMatcher(c),
		normalizer: NewNormalizer(c),
		logger:     logger,
	}
}

// Assemble processes lines in order, so the last line carrying a field wins.
func (a *Assembler) Assemble(text string) PageRecord {
	rec := PageRecord{}
	for _, line := range strings.Split(text, "\n") {
		line = CleanLine(line)
		if line == "" {
			continue
		}
		m, ok := a.matcher.Match(line)
		if !ok {
			continue
		}
		v := a.normalizer.Normalize(m.Field, m.Raw)
		spec, _ := a.catalog.Lookup(m.Field)
		if spec.OutputsMultiple() {
			for i, col := range spec.SubFields {
				rec[col] = v.Subs[i]
			}
		} else {
			rec[string(m.Field)] = v.Text
		}
		a.logger.Debug("line matched", "field", string(m.Field), "raw", m.Raw, "value", v.Text)
	}
	return rec
}

// Extract assembles every page in order and drops pages without any field.
// Failed pages contribute nothing.
func (a *Assembler) Extract(pages []Page) Document {
	doc, _ := a.ExtractIndexed(pages)
	return doc
}

// ExtractIndexed is Extract that also reports, for each record, the Index of
// the page it came from.
func (a *Assembler) ExtractIndexed(pages []Page) (Document, []int) {
	doc := Document{}
	var from []int
	for _, p := range pages {
		if p.Err != nil {
			a.logger.Warn("page skipped: ocr failed", "page", p.Index, "error", p.Err)
			continue
		}
		rec := a.Assemble(p.Text)
		if len(rec) == 0 {
			a.logger.Debug("page has no recognizable fields", "page", p.Index)
			continue
		}
		doc = append(doc, rec)
		from = append(from, p.Index)
	}
	return doc, from
}

// Extract runs the default catalog over per-page OCR texts in page order.
// An empty string stands for a page whose OCR produced nothing.
func Extract(texts []string) Document {
	pages := make([]Page, len(texts))
	for i, t := range texts {
		pages[i] = Page{Index: i, Text: t}
	}
	return NewAssembler(nil, nil).Extract(pages)
}

// Normalize applies the default catalog's rule for id to raw.
func Normalize(id string, raw string) Value {
	return NewNormalizer(nil).Normalize(constants.Field(id), raw)
}
