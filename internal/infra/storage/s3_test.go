package storage

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/go-cmp/cmp"

	"github.com/ajy0127/soc2-report-reviewer/internal/domain/report"
)

type fakeS3 struct {
	objects map[string][]byte
	tagSet  []types.Tag
	putIn   *s3.PutObjectInput
	headErr error
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	b := f.objects[aws.ToString(in.Key)]
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(b))), ContentType: aws.String("application/pdf")}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(f.objects[aws.ToString(in.Key)]))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.putIn = in
	b, _ := io.ReadAll(in.Body)
	f.objects[aws.ToString(in.Key)] = b
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObjectTagging(context.Context, *s3.GetObjectTaggingInput, ...func(*s3.Options)) (*s3.GetObjectTaggingOutput, error) {
	return &s3.GetObjectTaggingOutput{TagSet: f.tagSet}, nil
}

func (f *fakeS3) PutObjectTagging(_ context.Context, in *s3.PutObjectTaggingInput, _ ...func(*s3.Options)) (*s3.PutObjectTaggingOutput, error) {
	f.tagSet = in.Tagging.TagSet
	return &s3.PutObjectTaggingOutput{}, nil
}

func TestS3Store_RoundTrip(t *testing.T) {
	api := &fakeS3{objects: map[string][]byte{}}
	st := NewS3(api)
	ctx := context.Background()

	if err := st.Put(ctx, "b", "a.json", []byte(`{"x":1}`), "application/json"); err != nil {
		t.Fatal(err)
	}
	if aws.ToString(api.putIn.ContentType) != "application/json" || aws.ToInt64(api.putIn.ContentLength) != 7 {
		t.Errorf("put input = %+v", api.putIn)
	}
	info, err := st.Stat(ctx, "b", "a.json")
	if err != nil || info.Size != 7 {
		t.Fatalf("Stat = %+v, %v", info, err)
	}
	body, err := st.Get(ctx, "b", "a.json")
	if err != nil || string(body) != `{"x":1}` {
		t.Fatalf("Get = %q, %v", body, err)
	}
}

func TestS3Store_Tags(t *testing.T) {
	api := &fakeS3{objects: map[string][]byte{}, tagSet: []types.Tag{{Key: aws.String("owner"), Value: aws.String("grc")}}}
	st := NewS3(api)
	ctx := context.Background()

	tags, err := st.Tags(ctx, "b", "a.pdf")
	if err != nil {
		t.Fatal(err)
	}
	tags["report-run-date"] = "2024-05-01T12:00:00Z"
	if err := st.SetTags(ctx, "b", "a.pdf", tags); err != nil {
		t.Fatal(err)
	}
	got, _ := st.Tags(ctx, "b", "a.pdf")
	want := map[string]string{"owner": "grc", "report-run-date": "2024-05-01T12:00:00Z"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
}

func TestS3Store_ClassifiesThrottling(t *testing.T) {
	api := &fakeS3{headErr: &smithy.GenericAPIError{Code: "SlowDown"}}
	_, err := NewS3(api).Stat(context.Background(), "b", "a.pdf")
	if !report.IsTransient(err) {
		t.Errorf("SlowDown should be transient: %v", err)
	}
}

func TestS3Store_PresignWithoutClient(t *testing.T) {
	if _, err := NewS3(&fakeS3{}).PresignGet(context.Background(), "b", "k", 0); err == nil {
		t.Error("expected error without a real client")
	}
}
