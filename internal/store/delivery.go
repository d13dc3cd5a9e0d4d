package store

import (
	"database/sql"
	"time"
)

// Delivery is the outcome of notifying one hook about one hand.
type Delivery struct {
	ID          int64     `json:"id"`
	RunID       string    `json:"run_id"`
	HandID      int       `json:"hand_id"`
	Hook        string    `json:"hook"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// DeliveryRepository records hook deliveries.
type DeliveryRepository struct {
	db *sql.DB
}

// Deliveries returns the delivery repository for this store.
func (s *Store) Deliveries() *DeliveryRepository {
	return &DeliveryRepository{db: s.db}
}

// Create inserts a delivery record.
func (r *DeliveryRepository) Create(d *Delivery) error {
	if d.DeliveredAt.IsZero() {
		d.DeliveredAt = time.Now().UTC()
	}

	result, err := r.db.Exec(
		`INSERT INTO hook_deliveries (run_id, hand_id, hook, success, error, delivered_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		d.RunID, d.HandID, d.Hook, d.Success, d.Error, d.DeliveredAt,
	)
	if err != nil {
		return err
	}

	d.ID, err = result.LastInsertId()
	return err
}

// ListByRun returns the deliveries of a run in insertion order.
func (r *DeliveryRepository) ListByRun(runID string) ([]*Delivery, error) {
	rows, err := r.db.Query(
		`SELECT id, run_id, hand_id, hook, success, error, delivered_at
		 FROM hook_deliveries WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deliveries []*Delivery
	for rows.Next() {
		d := &Delivery{}
		if err := rows.Scan(&d.ID, &d.RunID, &d.HandID, &d.Hook, &d.Success, &d.Error, &d.DeliveredAt); err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return deliveries, nil
}
