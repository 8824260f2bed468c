package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/ajy0127/soc2-report-reviewer/internal/domain/report"
)

// ArtifactKey derives the result key from the input key: the extension is
// replaced by AnalysisSuffix and prefix is prepended.
func ArtifactKey(prefix, inputKey string) string {
	base := strings.TrimSuffix(inputKey, path.Ext(inputKey))
	return prefix + base + report.AnalysisSuffix
}

// Artifact locates a persisted analysis.
type Artifact struct {
	Bucket string
	Key    string
	URL    string
}

// ResultStore writes validated results as pretty-printed JSON.
type ResultStore struct {
	Store        report.ObjectStore
	Signer       report.LinkSigner
	OutputBucket string
	OutputPrefix string
	LinkTTL      time.Duration
	Logger       *slog.Logger
}

// Save overwrites the artifact for req. A presign failure only drops the URL.
func (s *ResultStore) Save(ctx context.Context, req report.AnalysisRequest, result report.AnalysisResult) (Artifact, error) {
	art := Artifact{Bucket: s.OutputBucket, Key: ArtifactKey(s.OutputPrefix, req.Key)}
	if art.Bucket == "" {
		art.Bucket = req.Bucket
	}

	body, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return Artifact{}, report.NewError(report.KindPersistence, report.StagePersisting, "encode result", err)
	}
	if err := s.Store.Put(ctx, art.Bucket, art.Key, body, "application/json"); err != nil {
		return Artifact{}, report.NewError(report.KindPersistence, report.StagePersisting, "write "+art.Key, err)
	}

	log := logger(s.Logger)
	log.Info("pipeline.persist.ok", "bucket", art.Bucket, "key", art.Key, "bytes", len(body))

	if s.Signer != nil && s.LinkTTL > 0 {
		url, err := s.Signer.PresignGet(ctx, art.Bucket, art.Key, s.LinkTTL)
		if err != nil {
			log.Warn("pipeline.persist.presign_failed", "key", art.Key, "error", err)
		} else {
			art.URL = url
		}
	}
	return art, nil
}
