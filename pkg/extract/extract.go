// Package extract turns PDF bytes into per-page text. The primary path reads
// content streams directly; pages that yield too little text are routed to an
// OCR fallback when one is configured.
package extract

import (
	"context"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// PageStatus tags how one page's text was obtained.
type PageStatus string

const (
	// PageOK means the content-stream text met the density threshold.
	PageOK PageStatus = "ok"

	// PageNeedsFallback means the page is likely image-only and its text,
	// if any, came through below the threshold with no OCR to cover it.
	PageNeedsFallback PageStatus = "needs_fallback"

	// PageOCR means the text came from the OCR fallback.
	PageOCR PageStatus = "ocr"
)

// Page is the extraction outcome for a single page.
type Page struct {
	Index  int
	Text   string
	Status PageStatus
}

// Result is the extraction outcome for a whole document.
type Result struct {
	Pages         []Page
	Method        string // "layout", "ocr", "layout+ocr", or "none"
	OCRUsed       bool
	LowConfidence bool
	Confidence    float64
}

// PageTexts returns the page texts in order.
func (r *Result) PageTexts() []string {
	texts := make([]string, len(r.Pages))
	for i, p := range r.Pages {
		texts[i] = p.Text
	}
	return texts
}

// FullText returns the document text with pages joined by newlines.
func (r *Result) FullText() string {
	return strings.Join(r.PageTexts(), "\n")
}

// TextLength returns the total character count across pages.
func (r *Result) TextLength() int {
	n := 0
	for _, p := range r.Pages {
		n += len(p.Text)
	}
	return n
}

// OCRFallback recovers text from image-only documents. Available reports
// whether the backend is usable, so a missing credential degrades to
// low-confidence results instead of failing the cycle.
type OCRFallback interface {
	// ExtractPages OCRs the whole document and returns per-page text plus
	// a 0-1 confidence.
	ExtractPages(ctx context.Context, pdf []byte) ([]string, float64, error)

	Available(ctx context.Context) bool
}

// Pipeline runs the layout extractor and applies the OCR fallback policy.
type Pipeline struct {
	lexical  *LexicalExtractor
	ocr      OCRFallback
	minChars int
	logger   hclog.Logger
}

// PipelineConfig tunes the Pipeline.
type PipelineConfig struct {
	// MinCharsPerPage is the density below which a page is treated as
	// image-only.
	MinCharsPerPage int

	// OCR is the fallback backend. Nil disables OCR entirely.
	OCR OCRFallback

	Logger hclog.Logger
}

// NewPipeline creates an extraction pipeline.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	minChars := cfg.MinCharsPerPage
	if minChars <= 0 {
		minChars = 40
	}
	return &Pipeline{
		lexical:  NewLexicalExtractor(logger),
		ocr:      cfg.OCR,
		minChars: minChars,
		logger:   logger.Named("extract"),
	}
}

// Extract produces per-page text for pdf. Layout extraction failures fall
// back to whole-document OCR; sparse pages get OCR text spliced in. When no
// OCR is available, or OCR itself fails, the result degrades rather than
// erroring: an empty low-confidence snapshot still takes a version, so
// monitoring continues on whatever text there is.
func (p *Pipeline) Extract(ctx context.Context, pdf []byte) (*Result, error) {
	texts, err := p.lexical.Extract(ctx, pdf)
	if err != nil {
		p.logger.Warn("layout extraction failed", "error", err)
		if p.ocrReady(ctx) {
			result, ocrErr := p.fullOCR(ctx, pdf)
			if ocrErr == nil {
				return result, nil
			}
			p.logger.Warn("OCR fallback failed", "error", ocrErr)
		}
		return &Result{Method: "none", LowConfidence: true}, nil
	}

	result := &Result{Method: "layout", Confidence: 1.0}
	sparse := 0
	for i, text := range texts {
		status := PageOK
		if len(strings.TrimSpace(text)) < p.minChars {
			status = PageNeedsFallback
			sparse++
		}
		result.Pages = append(result.Pages, Page{Index: i, Text: text, Status: status})
	}
	if sparse == 0 {
		return result, nil
	}

	if !p.ocrReady(ctx) {
		p.logger.Warn("sparse pages with no OCR available", "pages", sparse)
		result.LowConfidence = true
		return result, nil
	}

	ocrTexts, confidence, err := p.ocr.ExtractPages(ctx, pdf)
	if err != nil {
		p.logger.Warn("OCR fallback failed", "error", err)
		result.LowConfidence = true
		return result, nil
	}

	for i := range result.Pages {
		if result.Pages[i].Status != PageNeedsFallback {
			continue
		}
		if i < len(ocrTexts) && len(strings.TrimSpace(ocrTexts[i])) > len(strings.TrimSpace(result.Pages[i].Text)) {
			result.Pages[i].Text = ocrTexts[i]
			result.Pages[i].Status = PageOCR
		}
	}
	result.Method = "layout+ocr"
	result.OCRUsed = true
	result.Confidence = confidence
	result.LowConfidence = confidence < 0.8
	return result, nil
}

func (p *Pipeline) ocrReady(ctx context.Context) bool {
	return p.ocr != nil && p.ocr.Available(ctx)
}

func (p *Pipeline) fullOCR(ctx context.Context, pdf []byte) (*Result, error) {
	texts, confidence, err := p.ocr.ExtractPages(ctx, pdf)
	if err != nil {
		return nil, err
	}
	result := &Result{
		Method:        "ocr",
		OCRUsed:       true,
		Confidence:    confidence,
		LowConfidence: confidence < 0.8,
	}
	for i, text := range texts {
		result.Pages = append(result.Pages, Page{Index: i, Text: text, Status: PageOCR})
	}
	return result, nil
}
