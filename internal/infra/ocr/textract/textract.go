// Package textract adapts Amazon Textract to report.TextDetector.
package textract

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"

	"github.com/ajy0127/soc2-report-reviewer/internal/domain/report"
	"github.com/ajy0127/soc2-report-reviewer/internal/infra/awserr"
)

// maxResults is the largest page of blocks GetDocumentTextDetection returns.
const maxResults = 1000

// API is the subset of *textract.Client the detector uses.
type API interface {
	DetectDocumentText(ctx context.Context, in *textract.DetectDocumentTextInput, optFns ...func(*textract.Options)) (*textract.DetectDocumentTextOutput, error)
	StartDocumentTextDetection(ctx context.Context, in *textract.StartDocumentTextDetectionInput, optFns ...func(*textract.Options)) (*textract.StartDocumentTextDetectionOutput, error)
	GetDocumentTextDetection(ctx context.Context, in *textract.GetDocumentTextDetectionInput, optFns ...func(*textract.Options)) (*textract.GetDocumentTextDetectionOutput, error)
}

type Detector struct {
	api API
}

func New(api API) *Detector { return &Detector{api: api} }

// DetectText runs the synchronous API. Documents it refuses for size or
// page count come back as report.ErrDocumentTooLarge.
func (d *Detector) DetectText(ctx context.Context, document []byte) (report.DetectionPage, error) {
	out, err := d.api.DetectDocumentText(ctx, &textract.DetectDocumentTextInput{
		Document: &types.Document{Bytes: document},
	})
	if err != nil {
		switch awserr.Code(err) {
		case "DocumentTooLargeException", "UnsupportedDocumentException":
			return report.DetectionPage{}, fmt.Errorf("%w: %v", report.ErrDocumentTooLarge, err)
		}
		return report.DetectionPage{}, fmt.Errorf("textract detect: %w", awserr.Classify(err))
	}
	return report.DetectionPage{Lines: lines(out.Blocks), Pages: pages(out.DocumentMetadata)}, nil
}

func (d *Detector) StartTextDetection(ctx context.Context, bucket, key string) (string, error) {
	out, err := d.api.StartDocumentTextDetection(ctx, &textract.StartDocumentTextDetectionInput{
		DocumentLocation: &types.DocumentLocation{
			S3Object: &types.S3Object{Bucket: aws.String(bucket), Name: aws.String(key)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("textract start %s/%s: %w", bucket, key, awserr.Classify(err))
	}
	return aws.ToString(out.JobId), nil
}

func (d *Detector) GetTextDetection(ctx context.Context, jobID, nextToken string) (report.JobPage, error) {
	in := &textract.GetDocumentTextDetectionInput{
		JobId:      aws.String(jobID),
		MaxResults: aws.Int32(maxResults),
	}
	if nextToken != "" {
		in.NextToken = aws.String(nextToken)
	}
	out, err := d.api.GetDocumentTextDetection(ctx, in)
	if err != nil {
		return report.JobPage{}, fmt.Errorf("textract get %s: %w", jobID, awserr.Classify(err))
	}
	return report.JobPage{
		Status:        report.JobStatus(out.JobStatus),
		StatusMessage: aws.ToString(out.StatusMessage),
		DetectionPage: report.DetectionPage{
			Lines:     lines(out.Blocks),
			Pages:     pages(out.DocumentMetadata),
			NextToken: aws.ToString(out.NextToken),
		},
	}, nil
}

// lines keeps LINE blocks in the order the service returned them.
func lines(blocks []types.Block) []string {
	var out []string
	for _, b := range blocks {
		if b.BlockType == types.BlockTypeLine && b.Text != nil {
			out = append(out, *b.Text)
		}
	}
	return out
}

func pages(md *types.DocumentMetadata) int {
	if md == nil {
		return 0
	}
	return int(aws.ToInt32(md.Pages))
}
