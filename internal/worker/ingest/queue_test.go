package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/newsflow/internal/model"
)

// TestEnqueue_KnownSource は登録済みソース名でジョブが投入されることを検証する。
func TestEnqueue_KnownSource(t *testing.T) {
	jobs := newFakeJobRepo()
	sources := &fakeSourceRepo{sources: []*model.Source{{ID: "s-1", Name: "tech-blog"}}}

	q := NewQueue(jobs, sources, discardLogger())
	job, err := q.Enqueue(context.Background(), "tech-blog")
	if err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}

	if job.ID == "" {
		t.Error("job ID not populated")
	}
	if job.Status != model.JobStatusPending {
		t.Errorf("Status = %q, want pending", job.Status)
	}
	if len(jobs.enqueued) != 1 {
		t.Errorf("enqueued = %d jobs, want 1", len(jobs.enqueued))
	}
}

// TestEnqueue_EmptySourceBecomesWildcard は未指定のソースが
// ワイルドカードとして投入されることを検証する。
func TestEnqueue_EmptySourceBecomesWildcard(t *testing.T) {
	jobs := newFakeJobRepo()

	q := NewQueue(jobs, &fakeSourceRepo{}, discardLogger())
	job, err := q.Enqueue(context.Background(), "")
	if err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}
	if job.Source != model.SyncJobSourceAll {
		t.Errorf("Source = %q, want %q", job.Source, model.SyncJobSourceAll)
	}
}

// TestEnqueue_UnknownSource は未登録ソース名でSOURCE_NOT_FOUNDエラーと
// なることを検証する。
func TestEnqueue_UnknownSource(t *testing.T) {
	q := NewQueue(newFakeJobRepo(), &fakeSourceRepo{}, discardLogger())
	_, err := q.Enqueue(context.Background(), "ghost")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeSourceNotFound {
		t.Errorf("err = %v, want SOURCE_NOT_FOUND", err)
	}
}

// TestStatus_NotFound は存在しないジョブIDでJOB_NOT_FOUNDエラーとなることを検証する。
func TestStatus_NotFound(t *testing.T) {
	q := NewQueue(newFakeJobRepo(), &fakeSourceRepo{}, discardLogger())
	_, err := q.Status(context.Background(), "missing")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeJobNotFound {
		t.Errorf("err = %v, want JOB_NOT_FOUND", err)
	}
}

// TestStatus_ReturnsJob は投入済みジョブの状態が取得できることを検証する。
func TestStatus_ReturnsJob(t *testing.T) {
	jobs := newFakeJobRepo()
	q := NewQueue(jobs, &fakeSourceRepo{}, discardLogger())

	job, err := q.Enqueue(context.Background(), "")
	if err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}

	got, err := q.Status(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if got.ID != job.ID {
		t.Errorf("ID = %q, want %q", got.ID, job.ID)
	}
}
