package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ayusman/handscope/internal/boundary"
)

// HandRepository stores validated hand boundaries.
type HandRepository struct {
	db *sql.DB
}

// Hands returns the hand repository for this store.
func (s *Store) Hands() *HandRepository {
	return &HandRepository{db: s.db}
}

// CreateBatch inserts all hands of a run in a single transaction.
func (r *HandRepository) CreateBatch(runID string, hands []boundary.HandBoundary) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO hands (run_id, hand_id, start_frame, end_frame, start_time, end_time, duration,
		 start_confidence, end_confidence, overall_confidence, start_signals, end_signals)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, h := range hands {
		startSignals, err := json.Marshal(h.StartIndicators)
		if err != nil {
			return fmt.Errorf("encode start signals of hand %d: %w", h.HandID, err)
		}
		endSignals, err := json.Marshal(h.EndIndicators)
		if err != nil {
			return fmt.Errorf("encode end signals of hand %d: %w", h.HandID, err)
		}

		if _, err := stmt.Exec(runID, h.HandID, h.StartFrame, h.EndFrame, h.StartTime, h.EndTime, h.Duration,
			h.StartConfidence, h.EndConfidence, h.OverallConfidence, string(startSignals), string(endSignals)); err != nil {
			return fmt.Errorf("insert hand %d: %w", h.HandID, err)
		}
	}

	return tx.Commit()
}

// ListByRun returns the hands of a run ordered by start time.
func (r *HandRepository) ListByRun(runID string) ([]boundary.HandBoundary, error) {
	rows, err := r.db.Query(
		`SELECT hand_id, start_frame, end_frame, start_time, end_time, duration,
		 start_confidence, end_confidence, overall_confidence, start_signals, end_signals
		 FROM hands WHERE run_id = ? ORDER BY start_time`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hands []boundary.HandBoundary
	for rows.Next() {
		var h boundary.HandBoundary
		var startSignals, endSignals string

		if err := rows.Scan(&h.HandID, &h.StartFrame, &h.EndFrame, &h.StartTime, &h.EndTime, &h.Duration,
			&h.StartConfidence, &h.EndConfidence, &h.OverallConfidence, &startSignals, &endSignals); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(startSignals), &h.StartIndicators); err != nil {
			return nil, fmt.Errorf("decode start signals of hand %d: %w", h.HandID, err)
		}
		if err := json.Unmarshal([]byte(endSignals), &h.EndIndicators); err != nil {
			return nil, fmt.Errorf("decode end signals of hand %d: %w", h.HandID, err)
		}
		hands = append(hands, h)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return hands, nil
}
