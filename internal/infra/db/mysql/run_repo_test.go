package mysql

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/ajy0127/soc2-report-reviewer/internal/domain/runs"
)

func TestNullFloat(t *testing.T) {
	if nullFloat(nil).Valid {
		t.Error("nil rating must be NULL")
	}
	v := 7.5
	if got := floatPtr(nullFloat(&v)); got == nil || *got != 7.5 {
		t.Errorf("round trip = %v", got)
	}
	if stringOrDash("  ") != "-" {
		t.Error("blank string should become a dash")
	}
}

// Runs against a real database when MYSQL_TEST_DSN is set.
func TestRunRepository(t *testing.T) {
	dsn := os.Getenv("MYSQL_TEST_DSN")
	if dsn == "" {
		t.Skip("MYSQL_TEST_DSN not set")
	}
	ctx := context.Background()
	db, err := Connect(ctx, dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if err := Migrate(ctx, db); err != nil {
		t.Fatal(err)
	}

	repo := NewRunRepository(db)
	rating := 8.0
	run := &runs.Run{
		ID:            runs.RunID(uuid.NewString()),
		Bucket:        "in",
		Key:           "reports/vendor.pdf",
		Status:        runs.StatusFailed,
		Stage:         "analysis",
		ErrorKind:     "AnalysisServiceError",
		ModelAttempts: 3,
		StartedAt:     time.Now().UTC().Add(time.Hour).Truncate(time.Millisecond),
		DurationMS:    1200,
	}
	if err := repo.Save(ctx, run); err != nil {
		t.Fatal(err)
	}
	// same id overwrites
	run.Status = runs.StatusSuccess
	run.ErrorKind = ""
	run.QualityRating = &rating
	run.ArtifactBucket, run.ArtifactKey = "out", "reports/vendor - AI Analysis.json"
	if err := repo.Save(ctx, run); err != nil {
		t.Fatal(err)
	}

	got, err := repo.Latest(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("Latest() returned %d runs", len(got))
	}
	got[0].StartedAt = got[0].StartedAt.UTC()
	if diff := cmp.Diff(run, got[0]); diff != "" {
		t.Errorf("stored run mismatch (-want +got):\n%s", diff)
	}
}
