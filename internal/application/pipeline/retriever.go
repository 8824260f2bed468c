package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/ajy0127/soc2-report-reviewer/internal/domain/report"
)

var pdfMagic = []byte("%PDF-")

// DocumentRetriever loads the uploaded document after checking its metadata.
type DocumentRetriever struct {
	Store    report.ObjectStore
	MaxBytes int64
	Logger   *slog.Logger
}

// Retrieve returns the document bytes. Empty, oversized and non-PDF objects
// are ValidationErrors; storage failures are RetrievalErrors.
func (r *DocumentRetriever) Retrieve(ctx context.Context, req report.AnalysisRequest) ([]byte, error) {
	info, err := r.Store.Stat(ctx, req.Bucket, req.Key)
	if err != nil {
		return nil, report.NewError(report.KindRetrieval, report.StageRetrieving, "stat "+req.Key, err)
	}
	if info.Size == 0 {
		return nil, report.NewError(report.KindValidation, report.StageRetrieving, "document is empty", nil)
	}
	if r.MaxBytes > 0 && info.Size > r.MaxBytes {
		return nil, report.NewError(report.KindValidation, report.StageRetrieving,
			fmt.Sprintf("document is %d bytes, limit is %d", info.Size, r.MaxBytes), nil)
	}

	body, err := r.Store.Get(ctx, req.Bucket, req.Key)
	if err != nil {
		return nil, report.NewError(report.KindRetrieval, report.StageRetrieving, "get "+req.Key, err)
	}
	head := body
	if len(head) > 1024 {
		head = head[:1024]
	}
	if !bytes.Contains(head, pdfMagic) {
		return nil, report.NewError(report.KindValidation, report.StageRetrieving, "object is not a PDF document", nil)
	}

	logger(r.Logger).Info("pipeline.retrieve.ok",
		"bucket", req.Bucket, "key", req.Key, "bytes", len(body), "content_type", info.ContentType)
	return body, nil
}
