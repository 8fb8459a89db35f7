package extract

import (
	"context"
	"fmt"
	"sort"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
	"github.com/hashicorp/go-hclog"
)

// TextractOCR implements OCRFallback with Amazon Textract's synchronous
// text detection. Every call is logged for cost tracking; OCR is the
// expensive path and should stay rare.
type TextractOCR struct {
	client *textract.Client
	logger hclog.Logger
}

// TextractConfig configures the Textract client.
type TextractConfig struct {
	Region    string
	AccessKey string
	SecretKey string
}

// NewTextractOCR creates a Textract-backed OCR fallback.
func NewTextractOCR(ctx context.Context, cfg TextractConfig, logger hclog.Logger) (*TextractOCR, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &TextractOCR{
		client: textract.NewFromConfig(awsCfg),
		logger: logger.Named("textract"),
	}, nil
}

// Available reports whether credentials resolve. A misconfigured backend
// degrades extraction to low-confidence rather than failing cycles.
func (t *TextractOCR) Available(ctx context.Context) bool {
	return t.client != nil
}

// ExtractPages runs synchronous text detection and groups line blocks by
// page. Confidence is the average line confidence scaled to 0-1.
func (t *TextractOCR) ExtractPages(ctx context.Context, pdf []byte) ([]string, float64, error) {
	t.logger.Info("running OCR", "bytes", len(pdf))

	output, err := t.client.DetectDocumentText(ctx, &textract.DetectDocumentTextInput{
		Document: &types.Document{Bytes: pdf},
	})
	if err != nil {
		return nil, 0, &OCRError{Err: err}
	}

	byPage := make(map[int][]string)
	var confidenceSum float64
	var lines int
	for _, block := range output.Blocks {
		if block.BlockType != types.BlockTypeLine || block.Text == nil {
			continue
		}
		page := 1
		if block.Page != nil {
			page = int(*block.Page)
		}
		byPage[page] = append(byPage[page], *block.Text)
		if block.Confidence != nil {
			confidenceSum += float64(*block.Confidence)
			lines++
		}
	}

	pageNums := make([]int, 0, len(byPage))
	for page := range byPage {
		pageNums = append(pageNums, page)
	}
	sort.Ints(pageNums)

	maxPage := 0
	if len(pageNums) > 0 {
		maxPage = pageNums[len(pageNums)-1]
	}
	texts := make([]string, maxPage)
	for page, pageLines := range byPage {
		texts[page-1] = strings.Join(pageLines, "\n")
	}

	confidence := 0.0
	if lines > 0 {
		confidence = confidenceSum / float64(lines) / 100.0
	}
	t.logger.Info("OCR complete", "pages", len(texts), "lines", lines, "confidence", confidence)
	return texts, confidence, nil
}
