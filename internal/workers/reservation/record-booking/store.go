// internal/workers/reservation/record-booking/store.go
package recordbooking

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"energy-ai-agent/internal/models"
)

// Store persists bookings in the bookings table.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Insert(ctx context.Context, b *models.Booking) error {
	planJSON, err := json.Marshal(b.Plan)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	var restJSON []byte
	if b.Restaurant != nil {
		if restJSON, err = json.Marshal(b.Restaurant); err != nil {
			return fmt.Errorf("marshal restaurant: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO bookings (id, status, plan, restaurant, call_sid, url, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		b.ID,
		b.Status,
		planJSON,
		nullableJSON(restJSON),
		nullableString(b.CallSID),
		nullableString(b.URL),
		nullableString(b.Message),
		b.CreatedAt,
	)
	return err
}

// List returns the most recent bookings first.
func (s *Store) List(ctx context.Context, limit int) ([]models.Booking, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, plan, restaurant, call_sid, url, message, created_at
		FROM bookings
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Booking
	for rows.Next() {
		var (
			b                  models.Booking
			planJSON, restJSON []byte
			sid, url, message  sql.NullString
		)
		if err := rows.Scan(&b.ID, &b.Status, &planJSON, &restJSON, &sid, &url, &message, &b.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(planJSON, &b.Plan); err != nil {
			return nil, fmt.Errorf("decode plan of %s: %w", b.ID, err)
		}
		if len(restJSON) > 0 {
			var v models.Venue
			if err := json.Unmarshal(restJSON, &v); err == nil {
				b.Restaurant = &v
			}
		}
		b.CallSID, b.URL, b.Message = sid.String, url.String, message.String
		out = append(out, b)
	}
	return out, rows.Err()
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}
