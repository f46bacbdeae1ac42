package entries

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jimdaga/accomplish/internal/ai"
	"github.com/jimdaga/accomplish/internal/apierr"
	"github.com/jimdaga/accomplish/internal/logging"
	"github.com/jimdaga/accomplish/internal/models"
	"github.com/jimdaga/accomplish/internal/ratelimit"
	"github.com/jimdaga/accomplish/internal/request"
	"github.com/jimdaga/accomplish/internal/settings"
)

var now = time.Now

var dateShaped = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

type enrichmentView struct {
	AITitle    *string  `json:"ai_title"`
	AIBullets  []string `json:"ai_bullets"`
	AICategory *string  `json:"ai_category"`
}

type entryView struct {
	ID         uuid.UUID       `json:"id"`
	EntryDate  string          `json:"entry_date"`
	RawText    string          `json:"raw_text"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Enrichment *enrichmentView `json:"enrichment"`
}

func viewOf(e *models.EntryWithEnrichment) entryView {
	v := entryView{
		ID:        e.ID,
		EntryDate: e.Date(),
		RawText:   e.RawText,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
	if e.Enrichment != nil {
		v.Enrichment = &enrichmentView{
			AITitle:    e.Enrichment.AITitle,
			AIBullets:  e.Enrichment.Bullets(),
			AICategory: e.Enrichment.AICategory,
		}
	}
	return v
}

type savedView struct {
	ID        uuid.UUID `json:"id"`
	EntryDate string    `json:"entry_date"`
	RawText   string    `json:"raw_text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func savedViewOf(e *models.Entry) savedView {
	return savedView{ID: e.ID, EntryDate: e.Date(), RawText: e.RawText, CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt}
}

type saveInput struct {
	Text string
	Date string
}

type createRequest struct {
	RawText   string `json:"raw_text" binding:"required,min=1,max=5000"`
	EntryDate string `json:"entry_date" binding:"omitempty,isodate"`
}

func (r *createRequest) Normalize() saveInput { return saveInput{Text: r.RawText, Date: r.EntryDate} }

type createLegacyRequest struct {
	RawText   string `json:"rawText" binding:"required,min=1,max=5000"`
	EntryDate string `json:"entryDate" binding:"omitempty,isodate"`
}

func (r *createLegacyRequest) Normalize() saveInput { return saveInput{Text: r.RawText, Date: r.EntryDate} }

type updateRequest struct {
	RawText string `json:"raw_text" binding:"required,min=1,max=5000"`
}

func (r *updateRequest) Normalize() saveInput { return saveInput{Text: r.RawText} }

type updateLegacyRequest struct {
	RawText string `json:"rawText" binding:"required,min=1,max=5000"`
}

func (r *updateLegacyRequest) Normalize() saveInput { return saveInput{Text: r.RawText} }

type listQuery struct {
	Page  int    `form:"page,default=1" json:"page" binding:"min=1"`
	Limit int    `form:"limit,default=20" json:"limit" binding:"min=1,max=100"`
	Q     string `form:"q" json:"q"`
}

// TodayHandler returns today's entry in the user's timezone. A user without
// settings gets a row created from the client's timezone hint.
func TodayHandler(store *Store, prefs *settings.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		userID := c.GetString(logging.UserIDKey)

		st, err := prefs.EnsureWithTimezone(ctx, userID, settings.TimezoneHint(c))
		if err != nil {
			apierr.Respond(c, err)
			return
		}
		today := settings.TodayIn(st.ReminderTimezone, now())

		entry, err := store.GetByDate(ctx, userID, today)
		if IsNotFound(err) {
			c.JSON(http.StatusOK, gin.H{"exists": false, "entry": nil, "date": today})
			return
		}
		if err != nil {
			apierr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"exists": true, "entry": viewOf(entry), "date": today})
	}
}

// ListEntriesHandler pages through the user's entries.
func ListEntriesHandler(store *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q listQuery
		if err := request.BindQuery(c, &q); err != nil {
			apierr.Respond(c, err)
			return
		}

		page, err := store.ListPaginated(c.Request.Context(), c.GetString(logging.UserIDKey), q.Page, q.Limit, q.Q)
		if err != nil {
			apierr.Respond(c, err)
			return
		}

		views := make([]entryView, 0, len(page.Entries))
		for i := range page.Entries {
			views = append(views, viewOf(&page.Entries[i]))
		}
		c.JSON(http.StatusOK, gin.H{
			"entries": views,
			"pagination": gin.H{
				"page":    q.Page,
				"limit":   q.Limit,
				"total":   page.Total,
				"hasMore": page.HasMore,
			},
		})
	}
}

// CreateEntryHandler saves today's entry: 201 when created, 200 when an
// existing entry was replaced. An explicit date other than today is refused.
func CreateEntryHandler(store *Store, prefs *settings.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		userID := c.GetString(logging.UserIDKey)

		in, err := request.Bind[saveInput](c, &createRequest{}, &createLegacyRequest{})
		if err != nil {
			apierr.Respond(c, err)
			return
		}

		st, err := prefs.EnsureWithTimezone(ctx, userID, settings.TimezoneHint(c))
		if err != nil {
			apierr.Respond(c, err)
			return
		}
		today := settings.TodayIn(st.ReminderTimezone, now())
		if in.Date != "" && in.Date != today {
			apierr.Respond(c, apierr.BadRequest("Entries can only be created or updated for today."))
			return
		}

		entry, err := store.Upsert(ctx, userID, in.Text, today)
		if err != nil {
			apierr.Respond(c, err)
			return
		}

		status := http.StatusOK
		if entry.Created() {
			status = http.StatusCreated
		}
		c.JSON(status, savedViewOf(entry))
	}
}

// GetEntryHandler fetches by UUID or by YYYY-MM-DD date.
func GetEntryHandler(store *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		userID := c.GetString(logging.UserIDKey)
		param := c.Param("id")

		var (
			entry *models.EntryWithEnrichment
			err   error
		)
		switch {
		case dateShaped.MatchString(param):
			if !request.IsDate(param) {
				apierr.Respond(c, apierr.Validation("Validation failed", map[string]any{
					"date": []string{"Invalid date format (YYYY-MM-DD)"},
				}))
				return
			}
			entry, err = store.GetByDate(ctx, userID, param)
		default:
			id, perr := ParseID(param)
			if perr != nil {
				apierr.Respond(c, apierr.NotFound("Entry"))
				return
			}
			entry, err = store.GetByID(ctx, userID, id)
		}

		if IsNotFound(err) {
			apierr.Respond(c, apierr.NotFound("Entry"))
			return
		}
		if err != nil {
			apierr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, viewOf(entry))
	}
}

// UpdateEntryHandler replaces an entry's text. Past days may be edited here.
func UpdateEntryHandler(store *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := ParseID(c.Param("id"))
		if err != nil {
			apierr.Respond(c, apierr.NotFound("Entry"))
			return
		}

		in, err := request.Bind[saveInput](c, &updateRequest{}, &updateLegacyRequest{})
		if err != nil {
			apierr.Respond(c, err)
			return
		}

		entry, err := store.UpdateByID(c.Request.Context(), c.GetString(logging.UserIDKey), id, in.Text)
		if IsNotFound(err) {
			apierr.Respond(c, apierr.NotFound("Entry"))
			return
		}
		if err != nil {
			apierr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"id":         entry.ID,
			"entry_date": entry.Date(),
			"raw_text":   entry.RawText,
			"updated_at": entry.UpdatedAt,
		})
	}
}

// DeleteEntryHandler soft-deletes an entry.
func DeleteEntryHandler(store *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := ParseID(c.Param("id"))
		if err != nil {
			apierr.Respond(c, apierr.NotFound("Entry"))
			return
		}

		err = store.SoftDelete(c.Request.Context(), c.GetString(logging.UserIDKey), id)
		if IsNotFound(err) {
			apierr.Respond(c, apierr.NotFound("Entry"))
			return
		}
		if err != nil {
			apierr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Entry deleted", "id": id})
	}
}

type enrichmentHistoryView struct {
	ID         uuid.UUID `json:"id"`
	Version    int       `json:"version"`
	AIProvider string    `json:"ai_provider"`
	AIModel    string    `json:"ai_model"`
	AITitle    *string   `json:"ai_title"`
	AIBullets  []string  `json:"ai_bullets"`
	AICategory *string   `json:"ai_category"`
	CreatedAt  time.Time `json:"created_at"`
}

// EnrichmentHistoryHandler lists every enrichment version of an entry.
func EnrichmentHistoryHandler(store *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id, err := ParseID(c.Param("id"))
		if err != nil {
			apierr.Respond(c, apierr.NotFound("Entry"))
			return
		}
		if _, err := store.GetByID(ctx, c.GetString(logging.UserIDKey), id); err != nil {
			if IsNotFound(err) {
				err = apierr.NotFound("Entry")
			}
			apierr.Respond(c, err)
			return
		}

		history, err := store.History(ctx, id)
		if err != nil {
			apierr.Respond(c, err)
			return
		}
		views := make([]enrichmentHistoryView, 0, len(history))
		for i := range history {
			h := &history[i]
			views = append(views, enrichmentHistoryView{
				ID:         h.ID,
				Version:    h.Version,
				AIProvider: h.AIProvider,
				AIModel:    h.AIModel,
				AITitle:    h.AITitle,
				AIBullets:  h.Bullets(),
				AICategory: h.AICategory,
				CreatedAt:  h.CreatedAt,
			})
		}
		c.JSON(http.StatusOK, gin.H{"entry_id": id, "enrichments": views})
	}
}

// Limiter is the rate limiter surface the AI handlers need.
type Limiter interface {
	Check(ctx context.Context, userID string, p ratelimit.Policy) (ratelimit.Result, error)
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// Enhancer produces structured summaries of entry text.
type Enhancer interface {
	EnhanceEntry(ctx context.Context, text string) (*ai.Enhancement, error)
}

type enhanceRequest struct {
	EntryID string `json:"entry_id" binding:"required,uuid"`
}

func (r *enhanceRequest) Normalize() string { return r.EntryID }

type enhanceLegacyRequest struct {
	EntryID string `json:"entryId" binding:"required,uuid"`
}

func (r *enhanceLegacyRequest) Normalize() string { return r.EntryID }

// EnhanceHandler asks the AI adapter to summarise an entry and appends the
// result to its enrichment history. Expired rate-limit windows are purged
// after every attempt.
func EnhanceHandler(store *Store, limiter Limiter, enhancer Enhancer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		userID := c.GetString(logging.UserIDKey)

		defer func() {
			if err := limiter.Cleanup(context.WithoutCancel(ctx), ratelimit.Retention); err != nil {
				slog.Warn("Rate limit cleanup failed", "error", err)
			}
		}()

		rawID, err := request.Bind[string](c, &enhanceRequest{}, &enhanceLegacyRequest{})
		if err != nil {
			apierr.Respond(c, err)
			return
		}

		rate, err := limiter.Check(ctx, userID, ratelimit.AIEnhance)
		if err != nil {
			apierr.Respond(c, err)
			return
		}
		ratelimit.SetHeaders(c, rate)
		if !rate.Allowed {
			apierr.Respond(c, apierr.TooManyRequests())
			return
		}

		id, err := ParseID(rawID)
		if err != nil {
			apierr.Respond(c, apierr.NotFound("Entry"))
			return
		}
		entry, err := store.GetByID(ctx, userID, id)
		if IsNotFound(err) {
			apierr.Respond(c, apierr.NotFound("Entry"))
			return
		}
		if err != nil {
			apierr.Respond(c, err)
			return
		}

		enh, err := enhancer.EnhanceEntry(ctx, entry.RawText)
		if errors.Is(err, ai.ErrTimeout) {
			apierr.Respond(c, apierr.Timeout("AI enhancement").WithExtra("fallback", true))
			return
		}
		if err != nil {
			apierr.Respond(c, err)
			return
		}

		enr, err := store.AttachEnrichment(ctx, entry.ID, EnrichmentInput{
			Provider: enh.Provider,
			Model:    enh.Model,
			Title:    enh.Title,
			Bullets:  enh.Bullets,
			Category: enh.Category,
		})
		if err != nil {
			apierr.Respond(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"id":          enr.ID,
			"entry_id":    enr.EntryID,
			"version":     enr.Version,
			"ai_provider": enr.AIProvider,
			"ai_model":    enr.AIModel,
			"ai_title":    enr.AITitle,
			"ai_bullets":  enr.Bullets(),
			"ai_category": enr.AICategory,
		})
	}
}
