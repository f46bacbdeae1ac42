package entries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jimdaga/accomplish/internal/apierr"
	"github.com/jimdaga/accomplish/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MaxTextLength bounds entry bodies, counted in characters.
const MaxTextLength = 5000

// selectWithCurrent reads entries joined to their highest-version enrichment.
const selectWithCurrent = `
SELECT e.id, e.user_id, e.entry_date, e.raw_text, e.created_at, e.updated_at, e.deleted_at,
	cur.id AS enrichment_id, cur.ai_provider, cur.ai_model, cur.ai_title, cur.ai_bullets,
	cur.ai_category, cur.version AS enrichment_version, cur.created_at AS enrichment_created_at
FROM entries e
LEFT JOIN LATERAL (
	SELECT * FROM entry_enrichments en
	WHERE en.entry_id = e.id
	ORDER BY en.version DESC
	LIMIT 1
) cur ON true`

// entryRow is the flat shape of selectWithCurrent. Enrichment columns are
// NULL when the entry has never been enhanced.
type entryRow struct {
	ID                  uuid.UUID      `gorm:"column:id"`
	UserID              string         `gorm:"column:user_id"`
	EntryDate           time.Time      `gorm:"column:entry_date"`
	RawText             string         `gorm:"column:raw_text"`
	CreatedAt           time.Time      `gorm:"column:created_at"`
	UpdatedAt           time.Time      `gorm:"column:updated_at"`
	DeletedAt           sql.NullTime   `gorm:"column:deleted_at"`
	EnrichmentID        uuid.NullUUID  `gorm:"column:enrichment_id"`
	AIProvider          sql.NullString `gorm:"column:ai_provider"`
	AIModel             sql.NullString `gorm:"column:ai_model"`
	AITitle             sql.NullString `gorm:"column:ai_title"`
	AIBullets           []byte         `gorm:"column:ai_bullets"`
	AICategory          sql.NullString `gorm:"column:ai_category"`
	EnrichmentVersion   sql.NullInt64  `gorm:"column:enrichment_version"`
	EnrichmentCreatedAt sql.NullTime   `gorm:"column:enrichment_created_at"`
}

func (r entryRow) toModel() models.EntryWithEnrichment {
	out := models.EntryWithEnrichment{Entry: models.Entry{
		ID:        r.ID,
		UserID:    r.UserID,
		EntryDate: r.EntryDate,
		RawText:   r.RawText,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}}
	if r.DeletedAt.Valid {
		deleted := r.DeletedAt.Time
		out.DeletedAt = &deleted
	}
	if !r.EnrichmentID.Valid {
		return out
	}
	out.Enrichment = &models.Enrichment{
		ID:         r.EnrichmentID.UUID,
		EntryID:    r.ID,
		AIProvider: r.AIProvider.String,
		AIModel:    r.AIModel.String,
		AITitle:    nullString(r.AITitle),
		AIBullets:  datatypes.JSON(r.AIBullets),
		AICategory: nullString(r.AICategory),
		Version:    int(r.EnrichmentVersion.Int64),
		CreatedAt:  r.EnrichmentCreatedAt.Time,
	}
	return out
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

// Page is one page of a listing.
type Page struct {
	Entries []models.EntryWithEnrichment
	Total   int64
	HasMore bool
}

// Store persists entries and their enrichment history.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// GetByDate returns the live entry for date with its current enrichment.
func (s *Store) GetByDate(ctx context.Context, userID, date string) (*models.EntryWithEnrichment, error) {
	return s.getOne(ctx, "e.user_id = ? AND e.entry_date = ? AND e.deleted_at IS NULL", userID, date)
}

// GetByID returns the live entry with its current enrichment. Entries owned
// by someone else are reported exactly like missing ones.
func (s *Store) GetByID(ctx context.Context, userID string, id uuid.UUID) (*models.EntryWithEnrichment, error) {
	return s.getOne(ctx, "e.id = ? AND e.user_id = ? AND e.deleted_at IS NULL", id, userID)
}

func (s *Store) getOne(ctx context.Context, where string, args ...any) (*models.EntryWithEnrichment, error) {
	var rows []entryRow
	err := s.db.WithContext(ctx).Raw(selectWithCurrent+" WHERE "+where+" LIMIT 1", args...).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	if len(rows) == 0 {
		return nil, apierr.ErrNotFound
	}
	out := rows[0].toModel()
	return &out, nil
}

// ListPaginated lists live entries newest first. search, when set, matches
// raw text or the current enrichment title, case-insensitively.
func (s *Store) ListPaginated(ctx context.Context, userID string, page, limit int, search string) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	where := " WHERE e.user_id = ? AND e.deleted_at IS NULL"
	args := []any{userID}
	if search = strings.TrimSpace(search); search != "" {
		pattern := "%" + escapeLike(search) + "%"
		where += ` AND (e.raw_text ILIKE ? OR cur.ai_title ILIKE ?)`
		args = append(args, pattern, pattern)
	}

	db := s.db.WithContext(ctx)

	var total int64
	countSQL := "SELECT count(*) FROM (" + selectWithCurrent + where + ") matched"
	if err := db.Raw(countSQL, args...).Scan(&total).Error; err != nil {
		return nil, fmt.Errorf("count entries: %w", err)
	}

	offset := (page - 1) * limit
	var rows []entryRow
	listSQL := selectWithCurrent + where + " ORDER BY e.entry_date DESC LIMIT ? OFFSET ?"
	if err := db.Raw(listSQL, append(args, limit, offset)...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}

	out := &Page{Entries: make([]models.EntryWithEnrichment, 0, len(rows)), Total: total}
	for _, r := range rows {
		out.Entries = append(out.Entries, r.toModel())
	}
	out.HasMore = int64(offset+len(rows)) < total
	return out, nil
}

// Upsert creates the entry for date or replaces its text. The statement is
// atomic, so concurrent saves for the same day converge on one row. On
// creation CreatedAt equals UpdatedAt.
func (s *Store) Upsert(ctx context.Context, userID, text, date string) (*models.Entry, error) {
	now := s.now()
	var entry models.Entry
	err := s.db.WithContext(ctx).Raw(`
		INSERT INTO entries (id, user_id, entry_date, raw_text, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, entry_date) WHERE deleted_at IS NULL
		DO UPDATE SET raw_text = EXCLUDED.raw_text, updated_at = EXCLUDED.updated_at
		RETURNING *`,
		uuid.New(), userID, date, text, now, now,
	).Scan(&entry).Error
	if err != nil {
		return nil, fmt.Errorf("upsert entry: %w", err)
	}
	return &entry, nil
}

// UpdateByID replaces the text of a live entry the user owns.
func (s *Store) UpdateByID(ctx context.Context, userID string, id uuid.UUID, text string) (*models.Entry, error) {
	var rows []models.Entry
	err := s.db.WithContext(ctx).Raw(`
		UPDATE entries SET raw_text = ?, updated_at = ?
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL
		RETURNING *`,
		text, s.now(), id, userID,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("update entry: %w", err)
	}
	if len(rows) == 0 {
		return nil, apierr.ErrNotFound
	}
	return &rows[0], nil
}

// SoftDelete marks a live entry deleted. Deleting it again reports not found.
func (s *Store) SoftDelete(ctx context.Context, userID string, id uuid.UUID) error {
	now := s.now()
	res := s.db.WithContext(ctx).Exec(`
		UPDATE entries SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
		now, now, id, userID,
	)
	if res.Error != nil {
		return fmt.Errorf("delete entry: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apierr.ErrNotFound
	}
	return nil
}

// ListInRange returns live entries with start <= date <= end, newest first.
func (s *Store) ListInRange(ctx context.Context, userID, start, end string) ([]models.EntryWithEnrichment, error) {
	var rows []entryRow
	err := s.db.WithContext(ctx).Raw(selectWithCurrent+`
		WHERE e.user_id = ? AND e.deleted_at IS NULL AND e.entry_date >= ? AND e.entry_date <= ?
		ORDER BY e.entry_date DESC`,
		userID, start, end,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list entries in range: %w", err)
	}
	out := make([]models.EntryWithEnrichment, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// ExistsForDate reports whether the user has a live entry for date.
func (s *Store) ExistsForDate(ctx context.Context, userID, date string) (bool, error) {
	var exists bool
	err := s.db.WithContext(ctx).Raw(
		`SELECT EXISTS (SELECT 1 FROM entries WHERE user_id = ? AND entry_date = ? AND deleted_at IS NULL)`,
		userID, date,
	).Scan(&exists).Error
	if err != nil {
		return false, fmt.Errorf("check entry exists: %w", err)
	}
	return exists, nil
}

// ParseID accepts only canonical UUIDs.
func ParseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil || len(s) != 36 {
		return uuid.Nil, apierr.ErrNotFound
	}
	return id, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// IsNotFound reports whether err means the entry is absent or not owned.
func IsNotFound(err error) bool {
	return errors.Is(err, apierr.ErrNotFound)
}
