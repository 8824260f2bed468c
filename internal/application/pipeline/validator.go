package pipeline

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/ajy0127/soc2-report-reviewer/internal/domain/report"
)

// EventValidator turns a raw trigger into an AnalysisRequest.
//
// Accepted shapes: an S3 ObjectCreated notification with exactly one record,
// an EventBridge "Object Created" event, and a direct {"bucket","key"} payload.
type EventValidator struct {
	Logger *slog.Logger
}

// eventBridgeDetail accepts bucket and object either as objects
// ({"name":...}, {"key":...}) or as plain strings.
type eventBridgeDetail struct {
	Bucket json.RawMessage `json:"bucket"`
	Object json.RawMessage `json:"object"`
}

func (d eventBridgeDetail) request() (report.AnalysisRequest, error) {
	bucket, err := nameOrField(d.Bucket, "name")
	if err != nil {
		return report.AnalysisRequest{}, fmt.Errorf("bucket: %w", err)
	}
	key, err := nameOrField(d.Object, "key")
	if err != nil {
		return report.AnalysisRequest{}, fmt.Errorf("object: %w", err)
	}
	return report.AnalysisRequest{Bucket: bucket, Key: key}, nil
}

func nameOrField(raw json.RawMessage, field string) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", err
	}
	if v, ok := m[field]; ok {
		if err := json.Unmarshal(v, &s); err != nil {
			return "", err
		}
	}
	return s, nil
}

// Parse extracts and checks the object reference in raw.
func (v *EventValidator) Parse(raw []byte) (report.AnalysisRequest, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return report.AnalysisRequest{}, v.reject("event is not a JSON object", err)
	}

	var req report.AnalysisRequest
	switch {
	case probe["Records"] != nil:
		var ev events.S3Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			return req, v.reject("malformed storage notification", err)
		}
		if len(ev.Records) != 1 {
			return req, v.reject(fmt.Sprintf("event references %d objects, want exactly 1", len(ev.Records)), nil)
		}
		rec := ev.Records[0]
		if rec.EventName != "" && !strings.HasPrefix(rec.EventName, "ObjectCreated:") {
			return req, v.reject(fmt.Sprintf("unsupported event %q", rec.EventName), nil)
		}
		key, err := url.QueryUnescape(rec.S3.Object.Key)
		if err != nil {
			return req, v.reject("object key is not URL-encoded correctly", err)
		}
		req = report.AnalysisRequest{Bucket: rec.S3.Bucket.Name, Key: key}

	case probe["detail"] != nil:
		var ev events.CloudWatchEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return req, v.reject("malformed EventBridge event", err)
		}
		if ev.DetailType != "" && ev.DetailType != "Object Created" {
			return req, v.reject(fmt.Sprintf("unsupported detail-type %q", ev.DetailType), nil)
		}
		var d eventBridgeDetail
		if err := json.Unmarshal(ev.Detail, &d); err != nil {
			return req, v.reject("malformed EventBridge detail", err)
		}
		r, err := d.request()
		if err != nil {
			return req, v.reject("malformed EventBridge detail", err)
		}
		req = r

	case probe["bucket"] != nil || probe["key"] != nil:
		if err := json.Unmarshal(raw, &req); err != nil {
			return req, v.reject("malformed direct invocation", err)
		}

	default:
		return req, v.reject("event does not reference an object", nil)
	}

	if err := v.Check(req); err != nil {
		return report.AnalysisRequest{}, err
	}
	return req, nil
}

// Check applies the object rules to an already-built request.
func (v *EventValidator) Check(req report.AnalysisRequest) error {
	if strings.TrimSpace(req.Bucket) == "" {
		return v.reject("bucket is empty", nil)
	}
	if strings.TrimSpace(req.Key) == "" {
		return v.reject("object key is empty", nil)
	}
	if !strings.HasSuffix(strings.ToLower(req.Key), report.DocumentExt) {
		return v.reject(fmt.Sprintf("object %q is not a %s document", req.Key, report.DocumentExt), nil)
	}
	return nil
}

func (v *EventValidator) reject(reason string, cause error) error {
	logger(v.Logger).Info("pipeline.validate.skip", "reason", reason)
	return report.NewError(report.KindValidation, report.StageValidating, reason, cause)
}

func logger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
