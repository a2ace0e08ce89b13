package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Run is one recorded pipeline invocation.
type Run struct {
	ID               string
	InputPath        string
	OutputPath       string
	Status           Status
	MixPolicy        string
	SpeechIntervals  int
	SilenceIntervals int
	DurationSeconds  float64
	AudioPath        string
	VideoPath        string
	SubtitlePath     string
	ErrorKind        string
	ErrorMessage     string
	StartedAt        time.Time
	FinishedAt       time.Time
}

// Elapsed returns the wall time of a finished run, or zero.
func (r Run) Elapsed() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Outcome carries the fields recorded when a run finishes.
type Outcome struct {
	Status           Status
	SpeechIntervals  int
	SilenceIntervals int
	DurationSeconds  float64
	AudioPath        string
	VideoPath        string
	SubtitlePath     string
	ErrorKind        string
	ErrorMessage     string
}

const runColumns = "id, input_path, output_path, status, mix_policy, speech_intervals, silence_intervals, duration_seconds, audio_path, video_path, subtitle_path, error_kind, error_message, started_at, finished_at"

// BeginRun records a new run in the running state.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	if strings.TrimSpace(run.ID) == "" {
		return errors.New("begin run: id is required")
	}
	started := run.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO runs (id, input_path, output_path, status, mix_policy, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.InputPath, run.OutputPath, StatusRunning, nullableString(run.MixPolicy), formatTime(started),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun records the outcome of run id.
func (s *Store) FinishRun(ctx context.Context, id string, outcome Outcome) error {
	if outcome.Status != StatusSucceeded && outcome.Status != StatusFailed {
		return fmt.Errorf("finish run: invalid status %q", outcome.Status)
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE runs SET status = ?, speech_intervals = ?, silence_intervals = ?, duration_seconds = ?,
            audio_path = ?, video_path = ?, subtitle_path = ?, error_kind = ?, error_message = ?, finished_at = ?
         WHERE id = ?`,
		outcome.Status,
		outcome.SpeechIntervals,
		outcome.SilenceIntervals,
		outcome.DurationSeconds,
		nullableString(outcome.AudioPath),
		nullableString(outcome.VideoPath),
		nullableString(outcome.SubtitlePath),
		nullableString(outcome.ErrorKind),
		nullableString(outcome.ErrorMessage),
		formatTime(time.Now()),
		id,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run: %s not found", id)
	}
	return nil
}

// GetRun fetches a run by id. It returns nil when no run matches.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// Stats returns run counts grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM runs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("run stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// MarkInterrupted fails runs left in the running state by a process that
// died before recording an outcome. Runs started after before are left alone.
func (s *Store) MarkInterrupted(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE runs SET status = ?, error_kind = 'interrupted', error_message = 'run did not record an outcome', finished_at = ?
         WHERE status = ? AND started_at < ?`,
		StatusFailed, formatTime(time.Now()), StatusRunning, formatTime(before),
	)
	if err != nil {
		return 0, fmt.Errorf("mark interrupted runs: %w", err)
	}
	return res.RowsAffected()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run          Run
		status       string
		mixPolicy    sql.NullString
		audioPath    sql.NullString
		videoPath    sql.NullString
		subtitlePath sql.NullString
		errorKind    sql.NullString
		errorMessage sql.NullString
		startedRaw   sql.NullString
		finishedRaw  sql.NullString
	)
	if err := scanner.Scan(
		&run.ID,
		&run.InputPath,
		&run.OutputPath,
		&status,
		&mixPolicy,
		&run.SpeechIntervals,
		&run.SilenceIntervals,
		&run.DurationSeconds,
		&audioPath,
		&videoPath,
		&subtitlePath,
		&errorKind,
		&errorMessage,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}
	run.Status = Status(status)
	run.MixPolicy = mixPolicy.String
	run.AudioPath = audioPath.String
	run.VideoPath = videoPath.String
	run.SubtitlePath = subtitlePath.String
	run.ErrorKind = errorKind.String
	run.ErrorMessage = errorMessage.String
	run.StartedAt = parseTime(startedRaw)
	run.FinishedAt = parseTime(finishedRaw)
	return &run, nil
}
