package reports

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jimdaga/accomplish/internal/ai"
	"github.com/jimdaga/accomplish/internal/apierr"
	"github.com/jimdaga/accomplish/internal/models"
	"github.com/jimdaga/accomplish/internal/prompts"
	"github.com/jimdaga/accomplish/internal/ratelimit"
)

// MinEntries is the fewest entries a report can be built from.
const MinEntries = 5

// EntrySource loads a user's entries for a date range, newest first.
type EntrySource interface {
	ListInRange(ctx context.Context, userID, start, end string) ([]models.EntryWithEnrichment, error)
}

// Limiter is the rate limiter surface the generator needs.
type Limiter interface {
	Check(ctx context.Context, userID string, p ratelimit.Policy) (ratelimit.Result, error)
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// TextGenerator is the free-form AI path.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (*ai.Generation, error)
}

// Outputs persists generated reports.
type Outputs interface {
	Save(ctx context.Context, userID, typ, start, end, markdown string, snapshot []Summary, provider, model string) (*models.GeneratedOutput, error)
}

// Result is a persisted report and the number of entries behind it.
type Result struct {
	Output     *models.GeneratedOutput
	EntryCount int
	RateLimit  ratelimit.Result
}

// Generator produces reviews and resumes.
type Generator struct {
	entries   EntrySource
	limiter   Limiter
	ai        TextGenerator
	prompts   *prompts.Registry
	outputs   Outputs
	maxTokens int
}

func NewGenerator(entries EntrySource, limiter Limiter, gen TextGenerator, reg *prompts.Registry, outputs Outputs, maxTokens int) *Generator {
	return &Generator{
		entries:   entries,
		limiter:   limiter,
		ai:        gen,
		prompts:   reg,
		outputs:   outputs,
		maxTokens: maxTokens,
	}
}

type kind struct {
	policy   ratelimit.Policy
	prompt   string
	validate func(string) error
}

var kinds = map[string]kind{
	models.OutputTypeReview: {policy: ratelimit.GenerateReview, prompt: prompts.Review, validate: ValidateReview},
	models.OutputTypeResume: {policy: ratelimit.GenerateResume, prompt: prompts.Resume, validate: ValidateResume},
}

// Generate builds a report of type typ from the user's entries in
// [start, end]. Expired rate-limit windows are purged whatever the outcome.
// A rate-limit refusal returns a Result carrying only RateLimit alongside
// the error.
func (g *Generator) Generate(ctx context.Context, userID, typ, start, end string) (*Result, error) {
	k, ok := kinds[typ]
	if !ok {
		return nil, apierr.BadRequest("Unknown output type")
	}

	defer func() {
		if cerr := g.limiter.Cleanup(context.WithoutCancel(ctx), ratelimit.Retention); cerr != nil {
			slog.Warn("Rate limit cleanup failed", "error", cerr)
		}
	}()

	rate, err := g.limiter.Check(ctx, userID, k.policy)
	if err != nil {
		return nil, err
	}
	if !rate.Allowed {
		return &Result{RateLimit: rate}, apierr.TooManyRequests()
	}

	entries, err := g.entries.ListInRange(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	if len(entries) < MinEntries {
		return nil, apierr.Validation("Minimum 5 entries required", map[string]any{"entry_count": len(entries)})
	}

	summaries := Summarize(entries)
	prompt, err := g.prompts.MustGet(k.prompt).Render(map[string]string{
		"RangeStart": start,
		"RangeEnd":   end,
		"Summary":    BuildGroupedSummary(summaries),
	})
	if err != nil {
		return nil, err
	}

	gen, err := g.ai.Generate(ctx, prompt, g.maxTokens)
	if errors.Is(err, ai.ErrTimeout) {
		return nil, apierr.Timeout("AI generation")
	}
	if err != nil {
		return nil, err
	}

	if err := k.validate(gen.Text); err != nil {
		var shapeErr *ShapeError
		if errors.As(err, &shapeErr) {
			return nil, apierr.Validation("AI returned an invalid "+typ+" format", map[string]any{
				"reason":     shapeErr.Reason,
				"paragraphs": shapeErr.Paragraphs,
				"bullets":    shapeErr.Bullets,
			})
		}
		return nil, err
	}

	out, err := g.outputs.Save(ctx, userID, typ, start, end, gen.Text, summaries, gen.Provider, gen.Model)
	if err != nil {
		return nil, err
	}

	slog.Info("Report generated",
		"user_id", userID,
		"type", typ,
		"entry_count", len(entries),
		"provider", gen.Provider,
	)
	return &Result{Output: out, EntryCount: len(entries), RateLimit: rate}, nil
}
