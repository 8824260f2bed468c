package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ajy0127/soc2-report-reviewer/internal/application/clocktest"
	"github.com/ajy0127/soc2-report-reviewer/internal/application/retry"
	"github.com/ajy0127/soc2-report-reviewer/internal/domain/ai"
	"github.com/ajy0127/soc2-report-reviewer/internal/domain/report"
	"github.com/ajy0127/soc2-report-reviewer/internal/domain/runs"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// samplePDF is a minimal one-page document header.
var samplePDF = []byte("%PDF-1.7\n1 0 obj << /Type /Catalog /Pages 2 0 R >> endobj\n2 0 obj << /Type /Pages /Kids [3 0 R] /Count 1 >> endobj\n3 0 obj << /Type /Page /Parent 2 0 R >> endobj\n%%EOF\n")

const validCompletion = `{
  "scope": "Acme Cloud platform, Type 2, Jan-Dec 2024, Security and Availability",
  "controls": [
    {"name": "CC6.1 Logical access", "status": "Compliant"},
    {"name": "CC7.2 Monitoring", "status": "Non-compliant"}
  ],
  "cis_mapping": {"mapped": ["CIS 5 Account Management"], "gaps": ["CIS 13 Network Monitoring"]},
  "owasp_mapping": {"mapped": ["A01 Broken Access Control"], "gaps": ["A09 Logging Failures"]},
  "gaps": ["Alert triage exceptions in Q3"],
  "summary": "Acme's controls are largely effective with one monitoring exception.",
  "quality_rating": 7.5
}`

type fakeStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	types     map[string]string
	tags      map[string]map[string]string
	puts      int
	statErr   error
	getErr    error
	putErr    error
	tagErr    error
	setTagErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects: map[string][]byte{},
		types:   map[string]string{},
		tags:    map[string]map[string]string{},
	}
}

func objKey(bucket, key string) string { return bucket + "/" + key }

func (s *fakeStore) add(bucket, key string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[objKey(bucket, key)] = body
}

func (s *fakeStore) object(bucket, key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[objKey(bucket, key)]
	return b, ok
}

func (s *fakeStore) Stat(_ context.Context, bucket, key string) (report.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.statErr != nil {
		return report.ObjectInfo{}, s.statErr
	}
	b, ok := s.objects[objKey(bucket, key)]
	if !ok {
		return report.ObjectInfo{}, fmt.Errorf("no such key %s", key)
	}
	return report.ObjectInfo{Size: int64(len(b)), ContentType: "application/pdf"}, nil
}

func (s *fakeStore) Get(_ context.Context, bucket, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	b, ok := s.objects[objKey(bucket, key)]
	if !ok {
		return nil, fmt.Errorf("no such key %s", key)
	}
	return b, nil
}

func (s *fakeStore) Put(_ context.Context, bucket, key string, body []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.puts++
	s.objects[objKey(bucket, key)] = append([]byte(nil), body...)
	s.types[objKey(bucket, key)] = contentType
	return nil
}

func (s *fakeStore) Tags(_ context.Context, bucket, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tagErr != nil {
		return nil, s.tagErr
	}
	out := map[string]string{}
	for k, v := range s.tags[objKey(bucket, key)] {
		out[k] = v
	}
	return out, nil
}

func (s *fakeStore) SetTags(_ context.Context, bucket, key string, tags map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setTagErr != nil {
		return s.setTagErr
	}
	s.tags[objKey(bucket, key)] = tags
	return nil
}

type fakeSigner struct {
	url string
	err error
}

func (f fakeSigner) PresignGet(_ context.Context, bucket, key string, ttl time.Duration) (string, error) {
	return f.url, f.err
}

// fakeDetector replays scripted OCR responses.
type fakeDetector struct {
	syncPage  report.DetectionPage
	syncErrs  []error // consumed one per DetectText call
	startErrs []error
	polls     []report.JobPage // consumed one per GetTextDetection call without token
	pages     map[string]report.JobPage

	detectCalls int
	startCalls  int
	getCalls    int
}

func (d *fakeDetector) DetectText(context.Context, []byte) (report.DetectionPage, error) {
	d.detectCalls++
	if len(d.syncErrs) > 0 {
		err := d.syncErrs[0]
		d.syncErrs = d.syncErrs[1:]
		if err != nil {
			return report.DetectionPage{}, err
		}
	}
	return d.syncPage, nil
}

func (d *fakeDetector) StartTextDetection(context.Context, string, string) (string, error) {
	d.startCalls++
	if len(d.startErrs) > 0 {
		err := d.startErrs[0]
		d.startErrs = d.startErrs[1:]
		if err != nil {
			return "", err
		}
	}
	return "job-1", nil
}

func (d *fakeDetector) GetTextDetection(_ context.Context, jobID, token string) (report.JobPage, error) {
	d.getCalls++
	if token != "" {
		p, ok := d.pages[token]
		if !ok {
			return report.JobPage{}, errors.New("unknown token " + token)
		}
		return p, nil
	}
	if len(d.polls) == 0 {
		return report.JobPage{Status: report.JobInProgress}, nil
	}
	p := d.polls[0]
	if len(d.polls) > 1 {
		d.polls = d.polls[1:]
	}
	return p, nil
}

type modelReply struct {
	text string
	err  error
}

// fakeModel returns replies in order; the last one repeats.
type fakeModel struct {
	replies []modelReply
	calls   int
	prompts []string
}

func (m *fakeModel) Complete(_ context.Context, req ai.CompletionRequest) (string, error) {
	m.calls++
	m.prompts = append(m.prompts, req.Prompt)
	r := m.replies[min(m.calls, len(m.replies))-1]
	return r.text, r.err
}

type fakeMailer struct {
	sent []report.Notification
	err  error
}

func (m *fakeMailer) Send(_ context.Context, n report.Notification) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.sent = append(m.sent, n)
	return fmt.Sprintf("msg-%d", len(m.sent)), nil
}

type fakeRuns struct{ saved []*runs.Run }

func (r *fakeRuns) Save(_ context.Context, run *runs.Run) error {
	r.saved = append(r.saved, run)
	return nil
}

func (r *fakeRuns) Latest(context.Context, int) ([]*runs.Run, error) { return r.saved, nil }

type fakeRecorder struct {
	stages   []report.Stage
	statuses []runs.Status
}

func (f *fakeRecorder) ObserveStage(stage report.Stage, _ time.Duration) {
	f.stages = append(f.stages, stage)
}

func (f *fakeRecorder) RunFinished(status runs.Status, _ report.Kind) {
	f.statuses = append(f.statuses, status)
}

var testRetry = retry.Policy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 10 * time.Second, Multiplier: 2}

func newTestExtractor(det report.TextDetector, clk *clocktest.Clock) *TextExtractor {
	return &TextExtractor{
		Detector:        det,
		Clock:           clk,
		Retry:           testRetry,
		SyncMaxBytes:    5 << 20,
		SyncMaxPages:    1,
		PollInterval:    2 * time.Second,
		PollMaxInterval: 15 * time.Second,
		MaxWait:         5 * time.Minute,
		Logger:          discard,
	}
}

func newTestAnalyzer(model ai.Client, clk *clocktest.Clock) *ReportAnalyzer {
	return &ReportAnalyzer{
		Model:         model,
		Clock:         clk,
		Retry:         testRetry,
		MaxInputChars: 100000,
		MaxTokens:     4096,
		Temperature:   0.2,
		Logger:        discard,
	}
}

// transient mimics an adapter-classified throttling error.
func transient(msg string) error { return report.MarkTransient(errors.New(msg)) }
