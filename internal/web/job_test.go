package web

import (
	"testing"
	"time"
)

func TestJobLifecycle(t *testing.T) {
	jm := NewJobManager()

	job := jm.Create(4)
	if job.Status != JobStatusRunning {
		t.Fatalf("Status = %q, want running", job.Status)
	}
	if jm.Get(job.ID) != job {
		t.Error("Get() did not return the created job")
	}
	if jm.GetActive() != job {
		t.Error("GetActive() did not return the running job")
	}

	job.Update(1, 1, "deals@example.com")
	if job.Progress != 50 {
		t.Errorf("Progress = %d, want 50", job.Progress)
	}

	job.Complete()
	if job.Status != JobStatusCompleted || job.Progress != 100 {
		t.Errorf("job = %+v, want completed at 100%%", job)
	}
	if jm.GetActive() != nil {
		t.Error("GetActive() returned a completed job")
	}

	jm.Cleanup(0)
	if jm.Get(job.ID) != nil {
		t.Error("Cleanup() kept a finished job past retention")
	}
}

func TestJobCancel(t *testing.T) {
	jm := NewJobManager()
	job := jm.Create(2)

	job.Cancel()
	if !job.IsCancelled() {
		t.Error("IsCancelled() = false after Cancel")
	}
	select {
	case <-job.Context().Done():
	default:
		t.Error("job context not cancelled")
	}

	// Cancelling again must not change the completion time.
	first := job.CompletedAt
	job.Cancel()
	if !job.CompletedAt.Equal(first) {
		t.Error("second Cancel() moved CompletedAt")
	}
}

func TestJobPersistence(t *testing.T) {
	jp := NewJobPersistence(t.TempDir())

	if state, err := jp.Load(); err != nil || state != nil {
		t.Fatalf("Load() on empty dir = (%v, %v), want (nil, nil)", state, err)
	}

	saved := &PersistentJobState{
		ID:              "job-1",
		Status:          JobStatusRunning,
		Total:           3,
		StartedAt:       time.Now(),
		RemainingEmails: []int64{2, 3},
	}
	if err := jp.Save(saved); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := jp.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.ID != "job-1" || len(loaded.RemainingEmails) != 2 {
		t.Errorf("loaded = %+v", loaded)
	}

	if err := jp.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if state, _ := jp.Load(); state != nil {
		t.Error("Load() after Clear() returned state")
	}
}
