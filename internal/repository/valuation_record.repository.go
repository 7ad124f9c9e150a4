package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"propval/internal/domain"

	"github.com/google/uuid"
)

// ValuationRecordRepository is append-only: corrections are new runs
// referencing the superseded run id, never in-place edits.
type ValuationRecordRepository interface {
	Add(ctx context.Context, record *domain.ValuationRecord) error
	Get(ctx context.Context, runID uuid.UUID) (*domain.ValuationRecord, error)
	ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]*domain.ValuationRecord, error)
}

type valuationRecordRepositoryHandler struct {
	Db *sql.DB
}

func NewValuationRecordRepository(db *sql.DB) ValuationRecordRepository {
	return valuationRecordRepositoryHandler{Db: db}
}

func (h valuationRecordRepositoryHandler) Add(ctx context.Context, record *domain.ValuationRecord) error {
	payload, err := record.ToJSONBytes()
	if err != nil {
		return fmt.Errorf("failed to serialize valuation record: %w", err)
	}

	var supersedes interface{}
	if record.SupersedesRunID != nil {
		supersedes = record.SupersedesRunID.String()
	}

	_, err = h.Db.ExecContext(ctx, `
		INSERT INTO valuation_record (run_id, subject_property_id, supersedes_run_id, final_state, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		record.RunID,
		record.Subject.ID,
		supersedes,
		string(record.FinalState),
		payload,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert valuation record %s: %w", record.RunID, err)
	}
	return nil
}

func (h valuationRecordRepositoryHandler) Get(ctx context.Context, runID uuid.UUID) (*domain.ValuationRecord, error) {
	row := h.Db.QueryRowContext(ctx, `
		SELECT payload FROM valuation_record WHERE run_id = $1`,
		runID,
	)

	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("valuation record %s not found", runID)
		}
		return nil, fmt.Errorf("failed to fetch valuation record %s: %w", runID, err)
	}

	record := domain.ValuationRecord{}
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("failed to deserialize valuation record %s: %w", runID, err)
	}
	return &record, nil
}

func (h valuationRecordRepositoryHandler) ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]*domain.ValuationRecord, error) {
	rows, err := h.Db.QueryContext(ctx, `
		SELECT payload FROM valuation_record WHERE subject_property_id = $1 ORDER BY created_at`,
		subjectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list valuation records for subject %s: %w", subjectID, err)
	}
	defer rows.Close()

	records := []*domain.ValuationRecord{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		record := domain.ValuationRecord{}
		if err := json.Unmarshal(payload, &record); err != nil {
			return nil, fmt.Errorf("failed to deserialize valuation record: %w", err)
		}
		records = append(records, &record)
	}
	return records, rows.Err()
}
