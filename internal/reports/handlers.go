package reports

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jimdaga/accomplish/internal/apierr"
	"github.com/jimdaga/accomplish/internal/logging"
	"github.com/jimdaga/accomplish/internal/models"
	"github.com/jimdaga/accomplish/internal/ratelimit"
	"github.com/jimdaga/accomplish/internal/request"
)

type dateRange struct {
	Start string
	End   string
}

type rangeRequest struct {
	RangeStart string `json:"range_start" binding:"required,isodate"`
	RangeEnd   string `json:"range_end" binding:"required,isodate"`
}

func (r *rangeRequest) Normalize() dateRange { return dateRange{Start: r.RangeStart, End: r.RangeEnd} }

type rangeLegacyRequest struct {
	RangeStart string `json:"rangeStart" binding:"required,isodate"`
	RangeEnd   string `json:"rangeEnd" binding:"required,isodate"`
}

func (r *rangeLegacyRequest) Normalize() dateRange { return dateRange{Start: r.RangeStart, End: r.RangeEnd} }

type typedRange struct {
	Type string
	dateRange
}

type typedRangeRequest struct {
	Type       string `json:"type" binding:"required,oneof=review resume"`
	RangeStart string `json:"range_start" binding:"required,isodate"`
	RangeEnd   string `json:"range_end" binding:"required,isodate"`
}

func (r *typedRangeRequest) Normalize() typedRange {
	return typedRange{Type: r.Type, dateRange: dateRange{Start: r.RangeStart, End: r.RangeEnd}}
}

type typedRangeLegacyRequest struct {
	Type       string `json:"type" binding:"required,oneof=review resume"`
	RangeStart string `json:"rangeStart" binding:"required,isodate"`
	RangeEnd   string `json:"rangeEnd" binding:"required,isodate"`
}

func (r *typedRangeLegacyRequest) Normalize() typedRange {
	return typedRange{Type: r.Type, dateRange: dateRange{Start: r.RangeStart, End: r.RangeEnd}}
}

type outputView struct {
	ID             uuid.UUID `json:"id"`
	Type           string    `json:"type"`
	RangeStart     string    `json:"range_start"`
	RangeEnd       string    `json:"range_end"`
	OutputMarkdown string    `json:"output_markdown"`
	EntryCount     int       `json:"entry_count"`
	AIProvider     string    `json:"ai_provider"`
	AIModel        string    `json:"ai_model"`
	CreatedAt      time.Time `json:"created_at"`
}

func viewOf(out *models.GeneratedOutput, entryCount int) outputView {
	return outputView{
		ID:             out.ID,
		Type:           out.Type,
		RangeStart:     out.RangeStart.Format(models.DateLayout),
		RangeEnd:       out.RangeEnd.Format(models.DateLayout),
		OutputMarkdown: out.OutputMarkdown,
		EntryCount:     entryCount,
		AIProvider:     out.AIProvider,
		AIModel:        out.AIModel,
		CreatedAt:      out.CreatedAt,
	}
}

// GenerateHandler serves POST /api/generate/{review,resume}.
func GenerateHandler(gen *Generator, typ string) gin.HandlerFunc {
	return func(c *gin.Context) {
		in, err := request.Bind[dateRange](c, &rangeRequest{}, &rangeLegacyRequest{})
		if err != nil {
			apierr.Respond(c, err)
			return
		}
		generate(c, gen, typ, in)
	}
}

// GenerateTypedHandler serves POST /api/generate, where the report type
// travels in the body.
func GenerateTypedHandler(gen *Generator) gin.HandlerFunc {
	return func(c *gin.Context) {
		in, err := request.Bind[typedRange](c, &typedRangeRequest{}, &typedRangeLegacyRequest{})
		if err != nil {
			apierr.Respond(c, err)
			return
		}
		generate(c, gen, in.Type, in.dateRange)
	}
}

func generate(c *gin.Context, gen *Generator, typ string, in dateRange) {
	// ISO dates order lexically.
	if in.Start > in.End {
		apierr.Respond(c, apierr.Validation("Validation failed", map[string]any{
			"range_start": []string{"range_start must be on or before range_end"},
		}))
		return
	}

	res, err := gen.Generate(c.Request.Context(), c.GetString(logging.UserIDKey), typ, in.Start, in.End)
	if res != nil {
		ratelimit.SetHeaders(c, res.RateLimit)
	}
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(res.Output, res.EntryCount))
}

type listQuery struct {
	Type string `form:"type" json:"type" binding:"omitempty,oneof=review resume"`
}

// ListOutputsHandler returns the user's recent reports.
func ListOutputsHandler(store *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q listQuery
		if err := request.BindQuery(c, &q); err != nil {
			apierr.Respond(c, err)
			return
		}

		rows, err := store.ListOutputs(c.Request.Context(), c.GetString(logging.UserIDKey), q.Type)
		if err != nil {
			apierr.Respond(c, err)
			return
		}
		views := make([]outputView, 0, len(rows))
		for i := range rows {
			views = append(views, viewOf(&rows[i], snapshotCount(&rows[i])))
		}
		c.JSON(http.StatusOK, gin.H{"outputs": views})
	}
}

// GetOutputHandler returns one report.
func GetOutputHandler(store *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			apierr.Respond(c, apierr.NotFound("Output"))
			return
		}

		out, err := store.GetOutput(c.Request.Context(), c.GetString(logging.UserIDKey), id)
		if errors.Is(err, apierr.ErrNotFound) {
			err = apierr.NotFound("Output")
		}
		if err != nil {
			apierr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, viewOf(out, snapshotCount(out)))
	}
}
