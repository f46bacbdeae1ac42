package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jimdaga/accomplish/internal/apierr"
	"github.com/jimdaga/accomplish/internal/models"
	"gorm.io/gorm"
)

// historyLimit bounds ListOutputs.
const historyLimit = 50

// Store persists generated outputs. Rows are never updated.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Save inserts a generated output and returns the stored row.
func (s *Store) Save(ctx context.Context, userID, typ, start, end, markdown string, snapshot []Summary, provider, model string) (*models.GeneratedOutput, error) {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("marshal input snapshot: %w", err)
	}

	var out models.GeneratedOutput
	err = s.db.WithContext(ctx).Raw(`
		INSERT INTO generated_outputs
			(id, user_id, type, range_start, range_end, output_markdown, input_snapshot, ai_provider, ai_model, created_at)
		VALUES (?, ?, ?, ?, ?, ?, CAST(? AS jsonb), ?, ?, ?)
		RETURNING *`,
		uuid.New(), userID, typ, start, end, markdown, string(raw), provider, model, s.now(),
	).Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("save generated output: %w", err)
	}
	return &out, nil
}

// ListOutputs returns the user's most recent outputs, optionally of one type.
func (s *Store) ListOutputs(ctx context.Context, userID, typ string) ([]models.GeneratedOutput, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if typ != "" {
		q = q.Where("type = ?", typ)
	}

	var rows []models.GeneratedOutput
	if err := q.Order("created_at DESC").Limit(historyLimit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list generated outputs: %w", err)
	}
	return rows, nil
}

// GetOutput returns one of the user's outputs. Other users' outputs are
// reported as missing.
func (s *Store) GetOutput(ctx context.Context, userID string, id uuid.UUID) (*models.GeneratedOutput, error) {
	var rows []models.GeneratedOutput
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("get generated output: %w", err)
	}
	if len(rows) == 0 {
		return nil, apierr.ErrNotFound
	}
	return &rows[0], nil
}

// snapshotCount is the number of entries an output was generated from.
func snapshotCount(out *models.GeneratedOutput) int {
	var items []json.RawMessage
	if err := json.Unmarshal(out.InputSnapshot, &items); err != nil {
		return 0
	}
	return len(items)
}
