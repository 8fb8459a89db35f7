package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOCR is a scripted OCR backend.
type fakeOCR struct {
	texts      []string
	confidence float64
	err        error
	available  bool
	calls      int
}

func (f *fakeOCR) ExtractPages(ctx context.Context, pdf []byte) ([]string, float64, error) {
	f.calls++
	return f.texts, f.confidence, f.err
}

func (f *fakeOCR) Available(ctx context.Context) bool {
	return f.available
}

func densePage(text string) []byte {
	padded := text + " " + strings.Repeat("filler text ", 10)
	return []byte("BT (" + padded + ") Tj ET")
}

func TestPipeline_LayoutOnly(t *testing.T) {
	ocr := &fakeOCR{available: true}
	p := NewPipeline(PipelineConfig{MinCharsPerPage: 40, OCR: ocr})

	pdf := buildPDF(densePage("page one"), densePage("page two"))
	result, err := p.Extract(context.Background(), pdf)
	require.NoError(t, err)

	assert.Equal(t, "layout", result.Method)
	assert.False(t, result.OCRUsed)
	assert.False(t, result.LowConfidence)
	assert.Equal(t, 1.0, result.Confidence)
	require.Len(t, result.Pages, 2)
	assert.Equal(t, PageOK, result.Pages[0].Status)
	assert.Contains(t, result.Pages[0].Text, "page one")
	assert.Zero(t, ocr.calls)
}

func TestPipeline_SparsePageGetsOCR(t *testing.T) {
	ocr := &fakeOCR{
		available:  true,
		texts:      []string{"ignored", "scanned affidavit text recovered by OCR"},
		confidence: 0.93,
	}
	p := NewPipeline(PipelineConfig{MinCharsPerPage: 40, OCR: ocr})

	pdf := buildPDF(densePage("page one"), []byte("BT (x) Tj ET"))
	result, err := p.Extract(context.Background(), pdf)
	require.NoError(t, err)

	assert.Equal(t, "layout+ocr", result.Method)
	assert.True(t, result.OCRUsed)
	assert.False(t, result.LowConfidence)
	assert.Equal(t, PageOK, result.Pages[0].Status)
	assert.Contains(t, result.Pages[0].Text, "page one")
	assert.Equal(t, PageOCR, result.Pages[1].Status)
	assert.Equal(t, "scanned affidavit text recovered by OCR", result.Pages[1].Text)
}

func TestPipeline_NoOCRMarksLowConfidence(t *testing.T) {
	p := NewPipeline(PipelineConfig{MinCharsPerPage: 40})

	pdf := buildPDF([]byte("BT (x) Tj ET"))
	result, err := p.Extract(context.Background(), pdf)
	require.NoError(t, err)

	assert.True(t, result.LowConfidence)
	assert.False(t, result.OCRUsed)
	assert.Equal(t, PageNeedsFallback, result.Pages[0].Status)
}

func TestPipeline_OCRFailureDegrades(t *testing.T) {
	ocr := &fakeOCR{available: true, err: errors.New("throttled")}
	p := NewPipeline(PipelineConfig{MinCharsPerPage: 40, OCR: ocr})

	pdf := buildPDF([]byte("BT (x) Tj ET"))
	result, err := p.Extract(context.Background(), pdf)
	require.NoError(t, err)

	assert.True(t, result.LowConfidence)
	assert.False(t, result.OCRUsed)
	assert.Equal(t, "layout", result.Method)
}

func TestPipeline_UnparseableFallsBackToFullOCR(t *testing.T) {
	ocr := &fakeOCR{
		available:  true,
		texts:      []string{"recovered page"},
		confidence: 0.9,
	}
	p := NewPipeline(PipelineConfig{MinCharsPerPage: 40, OCR: ocr})

	result, err := p.Extract(context.Background(), []byte("%PDF-1.4 garbage with no objects"))
	require.NoError(t, err)

	assert.Equal(t, "ocr", result.Method)
	assert.True(t, result.OCRUsed)
	require.Len(t, result.Pages, 1)
	assert.Equal(t, PageOCR, result.Pages[0].Status)
}

func TestPipeline_UnparseableWithoutOCRDegrades(t *testing.T) {
	p := NewPipeline(PipelineConfig{MinCharsPerPage: 40})

	result, err := p.Extract(context.Background(), []byte("%PDF-1.4 garbage with no objects"))
	require.NoError(t, err)

	assert.Equal(t, "none", result.Method)
	assert.True(t, result.LowConfidence)
	assert.Empty(t, result.Pages)
	assert.Equal(t, "", result.FullText())
}

func TestPipeline_UnparseableWithFailingOCRDegrades(t *testing.T) {
	ocr := &fakeOCR{available: true, err: errors.New("throttled")}
	p := NewPipeline(PipelineConfig{MinCharsPerPage: 40, OCR: ocr})

	result, err := p.Extract(context.Background(), []byte("%PDF-1.4 garbage with no objects"))
	require.NoError(t, err)

	assert.Equal(t, "none", result.Method)
	assert.True(t, result.LowConfidence)
	assert.False(t, result.OCRUsed)
	assert.Equal(t, 1, ocr.calls)
}

func TestLexicalExtractor_ErrorType(t *testing.T) {
	_, err := NewLexicalExtractor(nil).Extract(context.Background(), []byte("not a pdf"))

	var extractionErr *ExtractionError
	require.ErrorAs(t, err, &extractionErr)
	assert.Contains(t, extractionErr.Error(), "not a PDF")
}

func TestResult_Accessors(t *testing.T) {
	r := &Result{Pages: []Page{
		{Index: 0, Text: "one", Status: PageOK},
		{Index: 1, Text: "two", Status: PageOK},
	}}

	assert.Equal(t, []string{"one", "two"}, r.PageTexts())
	assert.Equal(t, "one\ntwo", r.FullText())
	assert.Equal(t, 6, r.TextLength())
}
