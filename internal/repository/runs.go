package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/inspection-extractor/constants"
	"github.com/joseph-ayodele/inspection-extractor/internal/common"
	"github.com/joseph-ayodele/inspection-extractor/internal/entity"
)

type RunRepository interface {
	Start(ctx context.Context, in entity.NewRun) (*entity.Run, error)
	MarkRunning(ctx context.Context, runID uuid.UUID) error
	Finish(ctx context.Context, runID uuid.UUID, res entity.RunResult) error
	Fail(ctx context.Context, runID uuid.UUID, message string) error
	GetByID(ctx context.Context, runID uuid.UUID) (*entity.Run, error)
	GetLatestByHash(ctx context.Context, contentHash string) (*entity.Run, error)
	ListRuns(ctx context.Context, limit int) ([]*entity.Run, error)
}

type runRepo struct {
	db  *DB
	log *slog.Logger
}

func NewRunRepository(db *DB, log *slog.Logger) RunRepository {
	if log == nil {
		log = slog.Default()
	}
	return &runRepo{db: db, log: log}
}

var runColumns = []string{
	"id", "source_path", "filename", "content_hash", "source_type", "method", "status",
	"pages", "records", "warnings", "error_message", "started_at", "finished_at",
}

func (r *runRepo) Start(ctx context.Context, in entity.NewRun) (*entity.Run, error) {
	status := in.Status
	if status == "" {
		status = constants.RunStatusRunning
	}
	run := &entity.Run{
		ID:          uuid.New(),
		SourcePath:  in.SourcePath,
		Filename:    in.Filename,
		ContentHash: in.ContentHash,
		Status:      status,
		StartedAt:   time.UnixMilli(time.Now().UnixMilli()).UTC(),
	}
	q, args := entsql.Dialect(r.db.Dialect).
		Insert(tableRuns).
		Columns("id", "source_path", "filename", "content_hash", "status", "started_at").
		Values(run.ID.String(), run.SourcePath, run.Filename, run.ContentHash, string(run.Status), run.StartedAt.UnixMilli()).
		Query()
	if err := r.db.Driver.Exec(ctx, q, args, nil); err != nil {
		r.log.Error("extraction_run start failed", "filename", in.Filename, "err", err)
		return nil, common.NewAppError("DB_ERROR", "start run", fmt.Errorf("%w: %v", common.ErrDatabase, err))
	}
	r.log.Info("extraction_run started", "run_id", run.ID, "filename", in.Filename, "status", status)
	return run, nil
}

func (r *runRepo) MarkRunning(ctx context.Context, runID uuid.UUID) error {
	return r.update(ctx, runID, map[string]any{"status": string(constants.RunStatusRunning)})
}

func (r *runRepo) Finish(ctx context.Context, runID uuid.UUID, res entity.RunResult) error {
	warnings := res.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	wj, err := json.Marshal(warnings)
	if err != nil {
		return err
	}
	err = r.update(ctx, runID, map[string]any{
		"status":      string(constants.RunStatusOK),
		"source_type": res.SourceType,
		"method":      res.Method,
		"pages":       res.Pages,
		"records":     res.Records,
		"warnings":    string(wj),
		"finished_at": time.Now().UnixMilli(),
	})
	if err != nil {
		r.log.Error("extraction_run finish(OK) failed", "run_id", runID, "err", err)
		return err
	}
	r.log.Info("extraction_run finished (OK)", "run_id", runID, "pages", res.Pages, "records", res.Records)
	return nil
}

func (r *runRepo) Fail(ctx context.Context, runID uuid.UUID, message string) error {
	err := r.update(ctx, runID, map[string]any{
		"status":        string(constants.RunStatusFailed),
		"error_message": message,
		"finished_at":   time.Now().UnixMilli(),
	})
	if err != nil {
		r.log.Error("extraction_run finish(FAILED) failed", "run_id", runID, "err", err)
		return err
	}
	r.log.Warn("extraction_run finished (FAILED)", "run_id", runID, "error", message)
	return nil
}

func (r *runRepo) update(ctx context.Context, runID uuid.UUID, set map[string]any) error {
	u := entsql.Dialect(r.db.Dialect).Update(tableRuns)
	for _, col := range runColumns {
		if v, ok := set[col]; ok {
			u.Set(col, v)
		}
	}
	q, args := u.Where(entsql.EQ("id", runID.String())).Query()
	var res sql.Result
	if err := r.db.Driver.Exec(ctx, q, args, &res); err != nil {
		return common.NewAppError("DB_ERROR", "update run", fmt.Errorf("%w: %v", common.ErrDatabase, err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.NewAppError("NOT_FOUND", fmt.Sprintf("run %s", runID), common.ErrNotFound)
	}
	return nil
}

func (r *runRepo) GetByID(ctx context.Context, runID uuid.UUID) (*entity.Run, error) {
	runs, err := r.query(ctx, func(s *entsql.Selector) {
		s.Where(entsql.EQ("id", runID.String()))
	})
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, common.NewAppError("NOT_FOUND", fmt.Sprintf("run %s", runID), common.ErrNotFound)
	}
	return runs[0], nil
}

// GetLatestByHash returns the most recent successful run for a content hash.
func (r *runRepo) GetLatestByHash(ctx context.Context, contentHash string) (*entity.Run, error) {
	runs, err := r.query(ctx, func(s *entsql.Selector) {
		s.Where(entsql.And(
			entsql.EQ("content_hash", contentHash),
			entsql.EQ("status", string(constants.RunStatusOK)),
		)).OrderBy(entsql.Desc("finished_at")).Limit(1)
	})
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, common.NewAppError("NOT_FOUND", "no completed run for hash", common.ErrNotFound)
	}
	return runs[0], nil
}

func (r *runRepo) ListRuns(ctx context.Context, limit int) ([]*entity.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.query(ctx, func(s *entsql.Selector) {
		s.OrderBy(entsql.Desc("started_at")).Limit(limit)
	})
}

func (r *runRepo) query(ctx context.Context, where func(*entsql.Selector)) ([]*entity.Run, error) {
	b := entsql.Dialect(r.db.Dialect)
	sel := b.Select(runColumns...).From(b.Table(tableRuns))
	where(sel)
	q, args := sel.Query()

	rows := &entsql.Rows{}
	if err := r.db.Driver.Query(ctx, q, args, rows); err != nil {
		return nil, common.NewAppError("DB_ERROR", "query runs", fmt.Errorf("%w: %v", common.ErrDatabase, err))
	}
	defer rows.Close()

	var out []*entity.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func scanRun(rows *entsql.Rows) (*entity.Run, error) {
	var (
		run        entity.Run
		id, status string
		warnings   string
		errMsg     sql.NullString
		startedAt  int64
		finishedAt sql.NullInt64
	)
	if err := rows.Scan(&id, &run.SourcePath, &run.Filename, &run.ContentHash, &run.SourceType, &run.Method,
		&status, &run.Pages, &run.Records, &warnings, &errMsg, &startedAt, &finishedAt); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("run id %q: %w", id, err)
	}
	run.ID = parsed
	run.Status = constants.RunStatus(status)
	if warnings != "" {
		if err := json.Unmarshal([]byte(warnings), &run.Warnings); err != nil {
			return nil, fmt.Errorf("run %s warnings: %w", id, err)
		}
	}
	if errMsg.Valid {
		run.ErrorMessage = &errMsg.String
	}
	run.StartedAt = time.UnixMilli(startedAt).UTC()
	if finishedAt.Valid {
		t := time.UnixMilli(finishedAt.Int64).UTC()
		run.FinishedAt = &t
	}
	return &run, nil
}
