package extract

import "fmt"

// ExtractionError reports that the layout extractor could not parse the
// document's page structure. The pipeline treats it as a degradation
// signal, not a failure: monitoring continues on whatever text exists.
type ExtractionError struct {
	Reason string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("text extraction failed: %s", e.Reason)
}

// OCRError reports an OCR backend failure. Like ExtractionError it never
// aborts a cycle; the result is flagged low-confidence instead.
type OCRError struct {
	Err error
}

func (e *OCRError) Error() string {
	return fmt.Sprintf("ocr failed: %v", e.Err)
}

func (e *OCRError) Unwrap() error {
	return e.Err
}
