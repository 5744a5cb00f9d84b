package web

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the status of a background unsubscribe job.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Job tracks one background unsubscribe batch.
type Job struct {
	ID           string    `json:"id"`
	Status       JobStatus `json:"status"`
	Progress     int       `json:"progress"`
	Unsubscribed int       `json:"unsubscribed"`
	Failed       int       `json:"failed"`
	Total        int       `json:"total"`
	CurrentEmail string    `json:"current_email"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at,omitempty"`
	Error        string    `json:"error,omitempty"`

	ctx        context.Context
	cancelFunc context.CancelFunc
	mu         sync.Mutex
}

// Update records batch progress.
func (j *Job) Update(unsubscribed, failed int, currentEmail string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.Unsubscribed = unsubscribed
	j.Failed = failed
	j.CurrentEmail = currentEmail
	if j.Total > 0 {
		j.Progress = ((unsubscribed + failed) * 100) / j.Total
	}
}

// Complete marks the job as finished.
func (j *Job) Complete() {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.Status = JobStatusCompleted
	j.CompletedAt = time.Now()
	j.Progress = 100
	j.CurrentEmail = ""
}

// Fail marks the job as finished with an error.
func (j *Job) Fail(errMsg string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.Status = JobStatusCompleted
	j.CompletedAt = time.Now()
	j.Error = errMsg
	j.CurrentEmail = ""
}

// Cancel stops a running job.
func (j *Job) Cancel() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.Status == JobStatusRunning {
		j.Status = JobStatusCancelled
		j.CompletedAt = time.Now()
		if j.cancelFunc != nil {
			j.cancelFunc()
		}
	}
}

// IsCancelled reports whether the job was cancelled.
func (j *Job) IsCancelled() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.Status == JobStatusCancelled
}

// Context returns the job's cancellation context.
func (j *Job) Context() context.Context {
	return j.ctx
}

// ToJSON returns the job data for JSON serialization.
func (j *Job) ToJSON() map[string]interface{} {
	j.mu.Lock()
	defer j.mu.Unlock()

	return map[string]interface{}{
		"id":            j.ID,
		"status":        j.Status,
		"progress":      j.Progress,
		"unsubscribed":  j.Unsubscribed,
		"failed":        j.Failed,
		"total":         j.Total,
		"current_email": j.CurrentEmail,
		"started_at":    j.StartedAt,
		"completed_at":  j.CompletedAt,
		"error":         j.Error,
	}
}

// JobManager manages background jobs.
type JobManager struct {
	jobs map[string]*Job
	mu   sync.RWMutex
}

func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*Job),
	}
}

// Create creates a new running job with the given total count.
func (jm *JobManager) Create(total int) *Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())

	job := &Job{
		ID:         uuid.New().String(),
		Status:     JobStatusRunning,
		Total:      total,
		StartedAt:  time.Now(),
		ctx:        ctx,
		cancelFunc: cancel,
	}

	jm.jobs[job.ID] = job
	return job
}

// Get returns a job by ID, or nil if not found.
func (jm *JobManager) Get(id string) *Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	return jm.jobs[id]
}

// GetActive returns the currently running job, or nil if none.
func (jm *JobManager) GetActive() *Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	for _, job := range jm.jobs {
		if job.Status == JobStatusRunning {
			return job
		}
	}
	return nil
}

// Cleanup removes finished jobs older than maxAge.
func (jm *JobManager) Cleanup(maxAge time.Duration) {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	for id, job := range jm.jobs {
		if job.Status != JobStatusRunning && job.CompletedAt.Before(cutoff) {
			delete(jm.jobs, id)
		}
	}
}

// PersistentJobState is a job snapshot that survives restarts so an
// interrupted batch can be resumed.
type PersistentJobState struct {
	ID              string    `json:"id"`
	Status          JobStatus `json:"status"`
	Unsubscribed    int       `json:"unsubscribed"`
	Failed          int       `json:"failed"`
	Total           int       `json:"total"`
	StartedAt       time.Time `json:"started_at"`
	RemainingEmails []int64   `json:"remaining_emails"`
}

// JobPersistence saves and loads pending job state.
type JobPersistence struct {
	dataDir string
}

func NewJobPersistence(dataDir string) *JobPersistence {
	return &JobPersistence{dataDir: dataDir}
}

func (jp *JobPersistence) filePath() string {
	return filepath.Join(jp.dataDir, "pending_job.json")
}

func (jp *JobPersistence) Save(state *PersistentJobState) error {
	if err := os.MkdirAll(jp.dataDir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(jp.filePath(), data, 0600)
}

// Load returns a pending job state from disk, or nil if none exists.
func (jp *JobPersistence) Load() (*PersistentJobState, error) {
	data, err := os.ReadFile(jp.filePath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var state PersistentJobState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}

	return &state, nil
}

func (jp *JobPersistence) Clear() error {
	err := os.Remove(jp.filePath())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
