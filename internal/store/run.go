package store

import (
	"database/sql"
	"errors"
	"time"
)

// RunStatus is the lifecycle state of an analysis run.
type RunStatus string

const (
	// RunStatusRunning marks a run still being analysed.
	RunStatusRunning RunStatus = "running"
	// RunStatusCompleted marks a run that reached the end of its source.
	RunStatusCompleted RunStatus = "completed"
	// RunStatusFailed marks a run whose source could not be analysed.
	RunStatusFailed RunStatus = "failed"
)

// Run is one analysis of one video source.
type Run struct {
	ID              string     `json:"id"`
	Source          string     `json:"source"`
	Status          RunStatus  `json:"status"`
	FPS             float64    `json:"fps"`
	TotalFrames     int        `json:"total_frames"`
	FramesProcessed int        `json:"frames_processed"`
	Candidates      int        `json:"candidates"`
	Hands           int        `json:"hands"`
	Error           string     `json:"error,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}

// RunRepository provides CRUD operations for runs.
type RunRepository struct {
	db *sql.DB
}

// Runs returns the run repository for this store.
func (s *Store) Runs() *RunRepository {
	return &RunRepository{db: s.db}
}

// Create inserts a new run in the running state.
func (r *RunRepository) Create(run *Run) error {
	run.Status = RunStatusRunning
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	_, err := r.db.Exec(
		`INSERT INTO runs (id, source, status, fps, total_frames, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, string(run.Status), run.FPS, run.TotalFrames, run.StartedAt,
	)
	return err
}

// Finish records the outcome of a run. A non-empty errMsg marks it failed.
func (r *RunRepository) Finish(run *Run, errMsg string) error {
	now := time.Now().UTC()
	run.FinishedAt = &now
	run.Error = errMsg
	run.Status = RunStatusCompleted
	if errMsg != "" {
		run.Status = RunStatusFailed
	}

	result, err := r.db.Exec(
		`UPDATE runs SET status = ?, fps = ?, total_frames = ?, frames_processed = ?,
		 candidates = ?, error = ?, finished_at = ?
		 WHERE id = ?`,
		string(run.Status), run.FPS, run.TotalFrames, run.FramesProcessed,
		run.Candidates, run.Error, now, run.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

const runColumns = `r.id, r.source, r.status, r.fps, r.total_frames, r.frames_processed,
	r.candidates, r.error, r.started_at, r.finished_at,
	(SELECT COUNT(*) FROM hands h WHERE h.run_id = r.id)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	run := &Run{}
	var status string
	var finished sql.NullTime

	err := row.Scan(&run.ID, &run.Source, &status, &run.FPS, &run.TotalFrames, &run.FramesProcessed,
		&run.Candidates, &run.Error, &run.StartedAt, &finished, &run.Hands)
	if err != nil {
		return nil, err
	}

	run.Status = RunStatus(status)
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return run, nil
}

// GetByID retrieves a run by its ID.
func (r *RunRepository) GetByID(id string) (*Run, error) {
	run, err := scanRun(r.db.QueryRow(`SELECT `+runColumns+` FROM runs r WHERE r.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return run, nil
}

// List retrieves all runs, newest first.
func (r *RunRepository) List() ([]*Run, error) {
	rows, err := r.db.Query(`SELECT ` + runColumns + ` FROM runs r ORDER BY r.started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}

// Delete removes a run and, through cascading, its hands and deliveries.
func (r *RunRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// MarkInterrupted fails every run still marked running. It is called at
// startup, when no analysis can be in flight.
func (r *RunRepository) MarkInterrupted() (int64, error) {
	result, err := r.db.Exec(
		`UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE status = ?`,
		string(RunStatusFailed), "interrupted", time.Now().UTC(), string(RunStatusRunning),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
