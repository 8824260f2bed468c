package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/ajy0127/soc2-report-reviewer/internal/domain/report"
)

func TestRetrieve(t *testing.T) {
	tests := []struct {
		name     string
		body     []byte
		present  bool
		statErr  error
		wantKind report.Kind
	}{
		{name: "ok", body: samplePDF, present: true},
		{name: "missing", present: false, wantKind: report.KindRetrieval},
		{name: "denied", body: samplePDF, present: true, statErr: errors.New("AccessDenied"), wantKind: report.KindRetrieval},
		{name: "empty", body: []byte{}, present: true, wantKind: report.KindValidation},
		{name: "too large", body: append(append([]byte{}, samplePDF...), make([]byte, 2048)...), present: true, wantKind: report.KindValidation},
		{name: "not a pdf", body: []byte("PK\x03\x04 zip archive"), present: true, wantKind: report.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			store.statErr = tt.statErr
			if tt.present {
				store.add(testReq.Bucket, testReq.Key, tt.body)
			}
			r := &DocumentRetriever{Store: store, MaxBytes: 1024, Logger: discard}

			body, err := r.Retrieve(context.Background(), testReq)
			if tt.wantKind != "" {
				assertKind(t, err, tt.wantKind)
				return
			}
			if err != nil {
				t.Fatalf("Retrieve: %v", err)
			}
			if len(body) != len(tt.body) {
				t.Errorf("got %d bytes, want %d", len(body), len(tt.body))
			}
		})
	}
}
