package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	args *redis.XAddArgs
	err  error
}

func (f *fakeStream) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.args = a
	return redis.NewStringResult("1700000000000-0", f.err)
}

func TestCapture_PublishesToStream(t *testing.T) {
	at := time.Date(2024, 3, 15, 22, 30, 0, 0, time.UTC)
	fake := &fakeStream{}
	p := &Publisher{rdb: fake, now: func() time.Time { return at }}

	err := p.Capture(context.Background(), "user_1", EventReminderSent, map[string]any{"timezone": "UTC"})
	require.NoError(t, err)

	require.NotNil(t, fake.args)
	assert.Equal(t, StreamEvents, fake.args.Stream)
	assert.True(t, fake.args.Approx)
	assert.EqualValues(t, 10000, fake.args.MaxLen)

	values := fake.args.Values.(map[string]any)
	assert.Equal(t, SchemaVersionV1, values["schema_version"])
	assert.Equal(t, EventReminderSent, values["event"])

	var ev Event
	require.NoError(t, json.Unmarshal([]byte(values["payload"].(string)), &ev))
	assert.Equal(t, "user_1", ev.UserID)
	assert.Equal(t, "UTC", ev.Properties["timezone"])
	assert.True(t, ev.OccurredAt.Equal(at))
}

func TestCapture_Error(t *testing.T) {
	p := &Publisher{rdb: &fakeStream{err: errors.New("connection refused")}, now: time.Now}
	assert.ErrorContains(t, p.Capture(context.Background(), "u", "e", nil), "connection refused")
}

func TestNilPublisherIsNoop(t *testing.T) {
	p, err := NewPublisher("")
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.NoError(t, p.Capture(context.Background(), "u", "e", nil))
	assert.NoError(t, p.Close())
}
