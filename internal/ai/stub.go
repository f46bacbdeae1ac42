package ai

import (
	"context"
	"time"
)

const stubDelay = 300 * time.Millisecond

const stubEnhancement = `{"title":"Stubbed accomplishment","bullets":["Delivered the planned work","Unblocked a teammate"],"category":"Development"}`

// stubText satisfies both the review and the resume shape checks.
const stubText = `## Summary
Delivered steady progress across the period.

Improved reliability of the core services.

Mentored teammates and shared knowledge.

## Key Accomplishments
- Shipped the search feature
- Cut p95 latency by 30%
- Automated the release checklist
- Led the incident review process
- Wrote onboarding documentation
- Reduced cloud spend by 12%
- Migrated reporting to the new pipeline
- Closed 40 customer issues`

// stubCompletion returns canned content for local development without keys.
func stubCompletion(ctx context.Context, req Request) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(stubDelay):
	}
	if req.JSON {
		return stubEnhancement, nil
	}
	return stubText, nil
}
