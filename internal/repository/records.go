package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/inspection-extractor/internal/common"
	"github.com/joseph-ayodele/inspection-extractor/internal/entity"
)

type RecordRepository interface {
	SaveRecords(ctx context.Context, runID uuid.UUID, records []entity.StoredRecord) error
	ListRecords(ctx context.Context, runID uuid.UUID) ([]entity.StoredRecord, error)
}

type recordRepo struct {
	db  *DB
	log *slog.Logger
}

func NewRecordRepository(db *DB, log *slog.Logger) RecordRepository {
	if log == nil {
		log = slog.Default()
	}
	return &recordRepo{db: db, log: log}
}

// SaveRecords replaces every stored record of a run in one transaction.
func (r *recordRepo) SaveRecords(ctx context.Context, runID uuid.UUID, records []entity.StoredRecord) (err error) {
	b := entsql.Dialect(r.db.Dialect)
	tx, err := r.db.Driver.Tx(ctx)
	if err != nil {
		return common.NewAppError("DB_ERROR", "begin tx", fmt.Errorf("%w: %v", common.ErrDatabase, err))
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.log.Warn("rollback failed", "run_id", runID, "err", rbErr)
			}
		}
	}()

	q, args := b.Delete(tableRecords).Where(entsql.EQ("run_id", runID.String())).Query()
	if err = tx.Exec(ctx, q, args, nil); err != nil {
		return common.NewAppError("DB_ERROR", "clear records", fmt.Errorf("%w: %v", common.ErrDatabase, err))
	}
	if len(records) > 0 {
		ins := b.Insert(tableRecords).Columns("run_id", "seq", "page_index", "record_json")
		for i, rec := range records {
			fields := rec.Fields
			if fields == nil {
				fields = map[string]string{}
			}
			js, mErr := json.Marshal(fields)
			if mErr != nil {
				err = mErr
				return err
			}
			ins.Values(runID.String(), i, rec.PageIndex, string(js))
		}
		q, args = ins.Query()
		if err = tx.Exec(ctx, q, args, nil); err != nil {
			return common.NewAppError("DB_ERROR", "insert records", fmt.Errorf("%w: %v", common.ErrDatabase, err))
		}
	}
	if err = tx.Commit(); err != nil {
		return common.NewAppError("DB_ERROR", "commit records", fmt.Errorf("%w: %v", common.ErrDatabase, err))
	}
	r.log.Debug("page records saved", "run_id", runID, "count", len(records))
	return nil
}

// ListRecords returns a run's records in document order.
func (r *recordRepo) ListRecords(ctx context.Context, runID uuid.UUID) ([]entity.StoredRecord, error) {
	b := entsql.Dialect(r.db.Dialect)
	q, args := b.Select("seq", "page_index", "record_json").
		From(b.Table(tableRecords)).
		Where(entsql.EQ("run_id", runID.String())).
		OrderBy("seq").
		Query()

	rows := &entsql.Rows{}
	if err := r.db.Driver.Query(ctx, q, args, rows); err != nil {
		return nil, common.NewAppError("DB_ERROR", "query records", fmt.Errorf("%w: %v", common.ErrDatabase, err))
	}
	defer rows.Close()

	out := []entity.StoredRecord{}
	for rows.Next() {
		rec := entity.StoredRecord{RunID: runID}
		var js string
		if err := rows.Scan(&rec.Seq, &rec.PageIndex, &js); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(js), &rec.Fields); err != nil {
			return nil, fmt.Errorf("record %d of run %s: %w", rec.Seq, runID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
