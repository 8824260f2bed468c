package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ajy0127/soc2-report-reviewer/internal/application/pipeline"
	"github.com/ajy0127/soc2-report-reviewer/internal/domain/report"
	"github.com/ajy0127/soc2-report-reviewer/internal/domain/runs"
)

type fakePipeline struct {
	mu   sync.Mutex
	reqs []report.AnalysisRequest
	out  pipeline.Outcome
}

func (f *fakePipeline) HandleRequest(_ context.Context, req report.AnalysisRequest, runID string) pipeline.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	out := f.out
	out.RunID = runID
	out.Bucket, out.Key = req.Bucket, req.Key
	return out
}

type fakeRuns struct{ limit int }

func (f *fakeRuns) Save(context.Context, *runs.Run) error { return nil }
func (f *fakeRuns) Latest(_ context.Context, limit int) ([]*runs.Run, error) {
	f.limit = limit
	return []*runs.Run{{ID: "r1", Bucket: "in", Key: "a.pdf", Status: runs.StatusSuccess}}, nil
}

func newTestServer(t *testing.T, p Pipeline, rr runs.Repository) (*Router, *httptest.Server) {
	t.Helper()
	r, h := NewRouter(Options{
		Pipeline: p,
		Runs:     rr,
		APIKeys:  map[string]string{"grc": "k1"},
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return r, srv
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer k1")
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name     string
		out      pipeline.Outcome
		wantCode int
		wantBody string
	}{
		{"success", pipeline.Outcome{Status: runs.StatusSuccess, ArtifactKey: "a - AI Analysis.json"}, http.StatusOK, "success"},
		{"partial", pipeline.Outcome{Status: runs.StatusPartialSuccess, Kind: report.KindNotification}, http.StatusOK, "partial_success"},
		{"failed", pipeline.Outcome{Status: runs.StatusFailed, Kind: report.KindExtraction}, http.StatusInternalServerError, "failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, srv := newTestServer(t, &fakePipeline{out: tt.out}, nil)
			resp := post(t, srv.URL+"/v1/analyze", `{"bucket":"soc2-in","key":"reports/a.pdf"}`)
			if resp.StatusCode != tt.wantCode {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantCode)
			}
			var body pipeline.ResponseBody
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if string(body.Status) != tt.wantBody || body.Report != "reports/a.pdf" || body.RunID == "" {
				t.Errorf("body = %+v", body)
			}
		})
	}
}

func TestAnalyze_BadRequests(t *testing.T) {
	p := &fakePipeline{}
	_, srv := newTestServer(t, p, nil)

	for _, body := range []string{
		`not json`,
		`{"bucket":"soc2-in"}`,
		`{"bucket":"Bad_Bucket","key":"a.pdf"}`,
		`{"bucket":"soc2-in","key":"../etc/passwd"}`,
		`{"bucket":"soc2-in","key":"a.pdf","extra":1}`,
	} {
		resp := post(t, srv.URL+"/v1/analyze", body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d", body, resp.StatusCode)
		}
	}
	if len(p.reqs) != 0 {
		t.Errorf("pipeline called for invalid requests: %v", p.reqs)
	}
}

func TestAnalyze_Unauthorized(t *testing.T) {
	_, srv := newTestServer(t, &fakePipeline{}, nil)
	resp, err := http.Post(srv.URL+"/v1/analyze", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestAnalyze_Async(t *testing.T) {
	p := &fakePipeline{out: pipeline.Outcome{Status: runs.StatusSuccess}}
	r, srv := newTestServer(t, p, nil)

	resp := post(t, srv.URL+"/v1/analyze?async=true", `{"bucket":"soc2-in","key":"a.pdf"}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body map[string]any
	json.NewDecoder(resp.Body).Decode(&body)
	if body["status"] != "queued" || body["run_id"] == "" {
		t.Errorf("body = %v", body)
	}

	r.Wait()
	want := []report.AnalysisRequest{{Bucket: "soc2-in", Key: "a.pdf"}}
	if diff := cmp.Diff(want, p.reqs); diff != "" {
		t.Errorf("background request mismatch (-want +got):\n%s", diff)
	}
}

func TestLatestRuns(t *testing.T) {
	rr := &fakeRuns{}
	_, srv := newTestServer(t, &fakePipeline{}, rr)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/runs/latest?limit=500", nil)
	req.Header.Set("Authorization", "k1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var got []runs.Run
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "r1" {
		t.Errorf("runs = %+v", got)
	}
	if rr.limit != 100 {
		t.Errorf("limit = %d, want clamped to 100", rr.limit)
	}
}

func TestProbes(t *testing.T) {
	_, srv := newTestServer(t, &fakePipeline{}, nil)
	for _, path := range []string{"/health", "/ready", "/live", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s status = %d", path, resp.StatusCode)
		}
	}
}
