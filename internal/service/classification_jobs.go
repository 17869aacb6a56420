package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/academic-engine-api/pkg/errors"
	"github.com/noah-isme/academic-engine-api/pkg/jobs"
)

// JobTypeClassifyClass runs ClassifyClass in the background.
const JobTypeClassifyClass = "classify_class"

// jobStatusRetention is how long a finished job stays queryable.
const jobStatusRetention = time.Hour

// Background job states.
const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobSucceeded = "succeeded"
	JobFailed    = "failed"
)

type jobQueue interface {
	Handle(jobType string, handler jobs.Handler)
	Enqueue(job jobs.Job) error
}

type classClassifier interface {
	ClassifyClass(ctx context.Context, schoolID string, req ClassifyClassRequest) (*ClassificationReport, error)
}

// JobStatus reports the progress of a background classification.
type JobStatus struct {
	ID         string                `json:"id"`
	ClassID    string                `json:"class_id"`
	Year       int                   `json:"year,omitempty"`
	State      string                `json:"state"`
	Attempts   int                   `json:"attempts"`
	Error      string                `json:"error,omitempty"`
	Report     *ClassificationReport `json:"report,omitempty"`
	EnqueuedAt time.Time             `json:"enqueued_at"`
	FinishedAt *time.Time            `json:"finished_at,omitempty"`

	schoolID string
}

// permanentJobErrors fail the same way on every attempt, so the job is not
// handed back to the queue for a retry.
var permanentJobErrors = map[string]bool{
	appErrors.ErrValidation.Code:        true,
	appErrors.ErrNotFound.Code:          true,
	appErrors.ErrInvalidTransition.Code: true,
	appErrors.ErrEvaluation.Code:        true,
}

type classifyPayload struct {
	SchoolID string
	Request  ClassifyClassRequest
}

// ClassificationJobs queues class-wide classification runs.
type ClassificationJobs struct {
	queue      jobQueue
	classifier classClassifier
	logger     *zap.Logger
	retention  time.Duration
	now        func() time.Time

	mu       sync.RWMutex
	statuses map[string]*JobStatus
}

// NewClassificationJobs registers the classification handler on queue.
func NewClassificationJobs(queue jobQueue, classifier classClassifier, logger *zap.Logger) *ClassificationJobs {
	if logger == nil {
		logger = zap.NewNop()
	}
	j := &ClassificationJobs{
		queue:      queue,
		classifier: classifier,
		logger:     logger,
		retention:  jobStatusRetention,
		now:        time.Now,
		statuses:   map[string]*JobStatus{},
	}
	queue.Handle(JobTypeClassifyClass, j.run)
	return j
}

// Submit enqueues a ClassifyClass run and returns its initial status. Jobs
// finished longer than the retention period ago are forgotten.
func (j *ClassificationJobs) Submit(ctx context.Context, schoolID string, req ClassifyClassRequest) (*JobStatus, error) {
	if req.ClassID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class_id is required")
	}
	status := &JobStatus{
		ID:         uuid.NewString(),
		ClassID:    req.ClassID,
		Year:       req.Year,
		State:      JobQueued,
		EnqueuedAt: j.now().UTC(),
		schoolID:   schoolID,
	}
	j.mu.Lock()
	j.pruneLocked()
	j.statuses[status.ID] = status
	j.mu.Unlock()

	job := jobs.Job{ID: status.ID, Type: JobTypeClassifyClass, Payload: classifyPayload{SchoolID: schoolID, Request: req}}
	if err := j.queue.Enqueue(job); err != nil {
		j.mu.Lock()
		delete(j.statuses, status.ID)
		j.mu.Unlock()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue classification")
	}
	j.logger.Info("classification queued", zap.String("job_id", status.ID), zap.String("class_id", req.ClassID))
	snapshot := j.snapshot(status)
	return &snapshot, nil
}

// Status returns a job of the caller's school.
func (j *ClassificationJobs) Status(schoolID, id string) (*JobStatus, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	status, ok := j.statuses[id]
	if !ok || status.schoolID != schoolID || j.expired(status) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "classification job not found")
	}
	snapshot := *status
	return &snapshot, nil
}

func (j *ClassificationJobs) run(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(classifyPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.ID)
	}
	j.update(job.ID, func(s *JobStatus) {
		s.State = JobRunning
		s.Attempts = job.Attempt + 1
	})

	report, err := j.classifier.ClassifyClass(ctx, payload.SchoolID, payload.Request)
	finished := j.now().UTC()
	if err != nil {
		appErr := appErrors.FromError(err)
		j.update(job.ID, func(s *JobStatus) {
			s.State = JobFailed
			s.Error = appErr.Message
			s.FinishedAt = &finished
		})
		j.logger.Warn("classification job failed",
			zap.String("job_id", job.ID),
			zap.Int("attempt", job.Attempt+1),
			zap.String("code", appErr.Code),
			zap.Error(err))
		if permanentJobErrors[appErr.Code] {
			return nil
		}
		return err
	}
	j.update(job.ID, func(s *JobStatus) {
		s.State = JobSucceeded
		s.Error = ""
		s.Report = report
		s.FinishedAt = &finished
	})
	j.logger.Info("classification job finished",
		zap.String("job_id", job.ID),
		zap.String("class_id", report.ClassID),
		zap.Int("classified", report.Classified),
		zap.Int("failed", report.Failed))
	return nil
}

func (j *ClassificationJobs) expired(status *JobStatus) bool {
	return status.FinishedAt != nil && j.now().Sub(*status.FinishedAt) > j.retention
}

// pruneLocked drops expired jobs; callers hold the write lock.
func (j *ClassificationJobs) pruneLocked() {
	for id, status := range j.statuses {
		if j.expired(status) {
			delete(j.statuses, id)
		}
	}
}

func (j *ClassificationJobs) update(id string, fn func(*JobStatus)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if status, ok := j.statuses[id]; ok {
		fn(status)
	}
}

func (j *ClassificationJobs) snapshot(status *JobStatus) JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return *status
}
