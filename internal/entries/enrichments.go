package entries

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jimdaga/accomplish/internal/database"
	"github.com/jimdaga/accomplish/internal/models"
	"github.com/sethvargo/go-retry"
)

// maxVersionRetries bounds attempts when two enrichments race for the
// same version number.
const maxVersionRetries = 3

// EnrichmentInput is one successful enhancement.
type EnrichmentInput struct {
	Provider string
	Model    string
	Title    string
	Bullets  []string
	Category string
}

// AttachEnrichment appends a new version to the entry's history. The
// version is computed inside the insert; if a concurrent insert wins the
// same number, the unique (entry_id, version) index rejects it and the
// insert is retried.
func (s *Store) AttachEnrichment(ctx context.Context, entryID uuid.UUID, in EnrichmentInput) (*models.Enrichment, error) {
	bullets, err := json.Marshal(in.Bullets)
	if err != nil {
		return nil, fmt.Errorf("marshal bullets: %w", err)
	}

	var enr models.Enrichment
	backoff := retry.WithMaxRetries(maxVersionRetries, retry.NewConstant(10*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		enr = models.Enrichment{}
		err := s.db.WithContext(ctx).Raw(`
			INSERT INTO entry_enrichments
				(id, entry_id, ai_provider, ai_model, ai_title, ai_bullets, ai_category, version, created_at)
			SELECT CAST(? AS uuid), CAST(? AS uuid), CAST(? AS text), CAST(? AS text), CAST(? AS text),
				CAST(? AS jsonb), CAST(? AS text), COALESCE(MAX(version), 0) + 1, CAST(? AS timestamptz)
			FROM entry_enrichments WHERE entry_id = ?
			RETURNING *`,
			uuid.New(), entryID, in.Provider, in.Model, in.Title, string(bullets), in.Category, s.now(), entryID,
		).Scan(&enr).Error
		if database.IsUniqueViolation(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("attach enrichment: %w", err)
	}
	return &enr, nil
}

// History returns every enrichment of the entry, oldest version first.
func (s *Store) History(ctx context.Context, entryID uuid.UUID) ([]models.Enrichment, error) {
	var rows []models.Enrichment
	err := s.db.WithContext(ctx).
		Where("entry_id = ?", entryID).
		Order("version ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("enrichment history: %w", err)
	}
	return rows, nil
}
