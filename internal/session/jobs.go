package session

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/starford/mediabin/internal/apperr"
	"github.com/starford/mediabin/internal/catalog"
	"github.com/starford/mediabin/internal/models"
)

// maxFinishedJobs bounds the import history kept for status queries.
const maxFinishedJobs = 32

// JobState is the lifecycle stage of an import job.
type JobState string

const (
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobDone      JobState = "done"
	JobCancelled JobState = "cancelled"
)

// ImportRequest describes one batch of dropped or watched paths.
type ImportRequest struct {
	Paths []string
	// Hint bypasses sequence detection for every path.
	Hint  *models.Sequence
	Quiet bool
}

// JobStatus is the public view of an import job.
type JobStatus struct {
	ID        string          `json:"id"`
	State     JobState        `json:"state"`
	Quiet     bool            `json:"quiet"`
	Total     int             `json:"total"`
	Current   int             `json:"current"`
	CreatedAt time.Time       `json:"created_at"`
	Report    *catalog.Report `json:"report,omitempty"`
}

type job struct {
	status JobStatus
	paths  []string
	hint   *models.Sequence
	done   chan struct{}
}

// Import expands req.Paths and queues them as one job. Directories are
// walked recursively and imply a quiet import.
func (s *Session) Import(ctx context.Context, req ImportRequest) (JobStatus, error) {
	paths, quiet := catalog.ExpandPaths(req.Paths, s.logger)

	var st JobStatus
	err := s.Do(ctx, func() {
		s.jobSeq++
		j := &job{
			status: JobStatus{
				ID:        "import-" + strconv.Itoa(s.jobSeq),
				State:     JobQueued,
				Quiet:     quiet || req.Quiet,
				Total:     len(paths),
				CreatedAt: time.Now().UTC(),
			},
			paths: paths,
			hint:  req.Hint,
			done:  make(chan struct{}),
		}
		s.jobs[j.status.ID] = j
		s.order = append(s.order, j.status.ID)
		s.queue = append(s.queue, j)
		st = j.status

		s.logger.Info("session: import queued",
			slog.String("job", j.status.ID), slog.Int("files", len(paths)), slog.Bool("quiet", j.status.Quiet))
	})
	return st, err
}

// Wait blocks until the job finishes and returns its report. Jobs still
// pending when the loop stops are finished as cancelled.
func (s *Session) Wait(ctx context.Context, id string) (catalog.Report, error) {
	var j *job
	if err := s.Do(ctx, func() { j = s.jobs[id] }); err != nil {
		return catalog.Report{}, err
	}
	if j == nil {
		return catalog.Report{}, fmt.Errorf("session: job %s: %w", id, apperr.ErrNotFound)
	}

	select {
	case <-j.done:
		return *j.status.Report, nil
	case <-ctx.Done():
		return catalog.Report{}, ctx.Err()
	}
}

// Job returns the status of one import job.
func (s *Session) Job(ctx context.Context, id string) (JobStatus, error) {
	var (
		st JobStatus
		ok bool
	)
	if err := s.Do(ctx, func() {
		var j *job
		if j, ok = s.jobs[id]; ok {
			st = j.status
		}
	}); err != nil {
		return st, err
	}
	if !ok {
		return st, fmt.Errorf("session: job %s: %w", id, apperr.ErrNotFound)
	}
	return st, nil
}

// Jobs lists known import jobs, oldest first.
func (s *Session) Jobs(ctx context.Context) ([]JobStatus, error) {
	var out []JobStatus
	err := s.Do(ctx, func() {
		out = make([]JobStatus, 0, len(s.order))
		for _, id := range s.order {
			out = append(out, s.jobs[id].status)
		}
	})
	return out, err
}

// CancelImport cancels the running job at the next file boundary and drops
// every queued job. It returns the number of jobs cancelled.
func (s *Session) CancelImport(ctx context.Context) (int, error) {
	var n int
	err := s.Do(ctx, func() { n = s.cancelAll() })
	return n, err
}

func (s *Session) active() bool {
	return s.run != nil || len(s.queue) > 0
}

// step processes one file of the current job, starting the next queued job
// when none is running.
func (s *Session) step(ctx context.Context) {
	if s.run == nil {
		j := s.queue[0]
		s.queue = s.queue[1:]
		s.start(j)
	}
	j := s.current
	finished := s.run.Step(ctx)
	j.status.Current = j.status.Total - s.run.Remaining()
	if finished {
		s.finish()
	}
}

func (s *Session) start(j *job) {
	j.status.State = JobRunning
	s.current = j
	s.run = s.cat.BeginImport(j.paths, catalog.ImportOptions{
		Hint:  j.hint,
		Quiet: j.status.Quiet,
		Sink:  s.events,
		Progress: func(p catalog.Progress) {
			s.events.ImportProgress(j.status.ID, p)
		},
	})
	s.logger.Debug("session: import started", slog.String("job", j.status.ID))
}

func (s *Session) finish() {
	j := s.current
	rep := s.run.Report()
	s.run = nil
	s.current = nil
	s.complete(j, rep)

	s.logger.Info("session: import finished",
		slog.String("job", j.status.ID),
		slog.Int("imported", rep.Imported),
		slog.Int("skipped", rep.Skipped),
		slog.Int("collapsed", rep.Collapsed),
		slog.Bool("cancelled", rep.Cancelled))
}

func (s *Session) complete(j *job, rep catalog.Report) {
	j.status.State = JobDone
	if rep.Cancelled {
		j.status.State = JobCancelled
	}
	j.status.Report = &rep
	j.paths = nil
	close(j.done)
	s.events.ImportFinished(j.status)
	s.trimJobs()
}

func (s *Session) cancelAll() int {
	n := 0
	if s.run != nil {
		s.run.Cancel()
		s.finish()
		n++
	}
	for _, j := range s.queue {
		s.complete(j, catalog.Report{Cancelled: true})
		n++
	}
	s.queue = nil
	return n
}

func (s *Session) trimJobs() {
	finished := 0
	for _, id := range s.order {
		if s.jobs[id].status.Report != nil {
			finished++
		}
	}
	for i := 0; finished > maxFinishedJobs && i < len(s.order); {
		id := s.order[i]
		if s.jobs[id].status.Report == nil {
			i++
			continue
		}
		delete(s.jobs, id)
		s.order = append(s.order[:i], s.order[i+1:]...)
		finished--
	}
}
