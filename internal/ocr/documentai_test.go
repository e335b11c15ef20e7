package ocr

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/documentai/apiv1/documentaipb"

	"github.com/joseph-ayodele/inspection-extractor/constants"
)

func anchor(start, end int64) *documentaipb.Document_Page_Layout {
	return &documentaipb.Document_Page_Layout{
		TextAnchor: &documentaipb.Document_TextAnchor{
			TextSegments: []*documentaipb.Document_TextAnchor_TextSegment{{StartIndex: start, EndIndex: end}},
		},
	}
}

func TestDocumentAIExtractPages(t *testing.T) {
	full := "天気 Weather fine\nShipNo. A-1\n"
	// "天気 Weather fine\n" is 16 runes.
	doc := &documentaipb.Document{
		Text: full,
		Pages: []*documentaipb.Document_Page{
			{Layout: anchor(0, 16), DetectedLanguages: []*documentaipb.Document_Page_DetectedLanguage{{LanguageCode: "en"}}},
			{Layout: anchor(16, 99)},
		},
	}
	var gotReq *documentaipb.ProcessRequest
	d := &DocumentAIExtractor{
		cfg: DocumentAIConfig{ProjectID: "p", Location: "eu", ProcessorID: "proc"},
		process: func(_ context.Context, req *documentaipb.ProcessRequest) (*documentaipb.Document, error) {
			gotReq = req
			return doc, nil
		},
		logger: discardLogger(),
	}

	res, err := d.ExtractPages(context.Background(), writeFile(t, "r.pdf", "%PDF-1.4"))
	if err != nil {
		t.Fatal(err)
	}
	if gotReq.GetName() != "projects/p/locations/eu/processors/proc" || !gotReq.GetSkipHumanReview() {
		t.Errorf("unexpected request %v", gotReq)
	}
	if gotReq.GetRawDocument().GetMimeType() != "application/pdf" {
		t.Errorf("mime = %q", gotReq.GetRawDocument().GetMimeType())
	}
	if res.SourceType != constants.PDF || res.Method != "documentai" || res.Language != "en" {
		t.Errorf("unexpected meta %+v", res)
	}
	if len(res.Pages) != 2 || res.Pages[0].Text != "天気 Weather fine" || res.Pages[1].Text != "ShipNo. A-1" {
		t.Fatalf("pages = %+v", res.Pages)
	}
}

func TestDocumentAIErrors(t *testing.T) {
	d := &DocumentAIExtractor{
		process: func(context.Context, *documentaipb.ProcessRequest) (*documentaipb.Document, error) {
			return nil, errors.New("quota exceeded")
		},
		logger: discardLogger(),
	}
	if _, err := d.ExtractPages(context.Background(), writeFile(t, "r.jpg", "x")); err == nil {
		t.Fatal("expected process error")
	}
	if _, err := d.ExtractPages(context.Background(), writeFile(t, "r.gif", "x")); err == nil {
		t.Fatal("expected unsupported extension error")
	}
}
