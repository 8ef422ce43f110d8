package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docdesk/internal/core/domain"
)

func newTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	q, err := NewQueue(context.Background(), client, "test-worker")
	require.NoError(t, err)
	return q, mr
}

func TestNewQueue_GroupAlreadyExists(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	_, err := NewQueue(context.Background(), client, "a")
	require.NoError(t, err)
	_, err = NewQueue(context.Background(), client, "b")
	require.NoError(t, err, "second queue on the same stream must reuse the group")
}

func TestNewQueue_RequiresClient(t *testing.T) {
	_, err := NewQueue(context.Background(), nil, "")
	assert.Error(t, err)
}

func TestQueue_EnqueueDequeueAck(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	task := domain.NewIndexTask("/Shared Documents/KYC")
	require.NoError(t, q.Enqueue(ctx, task))

	got, err := q.DequeueWithTimeout(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, domain.TaskTypeIndexDocuments, got.Type)
	assert.Equal(t, "/Shared Documents/KYC", got.RootPath())
	assert.Equal(t, domain.TaskStatusProcessing, got.Status)
	assert.Equal(t, 1, got.Attempts)

	require.NoError(t, q.Ack(ctx, task.ID))

	stored, err := q.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, stored.Status)
	assert.NotNil(t, stored.CompletedAt)
}

func TestQueue_DequeueEmpty(t *testing.T) {
	q, _ := newTestQueue(t)

	got, err := q.DequeueWithTimeout(context.Background(), 0)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestQueue_DelayedTaskIsNotDequeued(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	task := domain.NewIntakeTask()
	task.ScheduledFor = time.Now().Add(time.Hour)
	require.NoError(t, q.Enqueue(ctx, task))

	got, err := q.DequeueWithTimeout(ctx, 0)
	require.NoError(t, err)
	assert.Nil(t, got)

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.PendingCount)
}

func TestQueue_NackRetriesThenFails(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	task := domain.NewIntakeTask()
	task.MaxAttempts = 1
	require.NoError(t, q.Enqueue(ctx, task))

	got, err := q.DequeueWithTimeout(ctx, 0)
	require.NoError(t, err)
	require.NotNil(t, got)

	require.NoError(t, q.Nack(ctx, task.ID, "imap unreachable"))

	stored, err := q.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, stored.Status)
	assert.Equal(t, "imap unreachable", stored.Error)
	assert.False(t, mr.Exists(taskKeyPrefix+task.ID+":msg"))
}

func TestQueue_NackSchedulesRetry(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	task := domain.NewRetryDraftsTask()
	require.NoError(t, q.Enqueue(ctx, task))
	_, err := q.DequeueWithTimeout(ctx, 0)
	require.NoError(t, err)

	require.NoError(t, q.Nack(ctx, task.ID, "llm timeout"))

	stored, err := q.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, stored.Status)
	assert.True(t, stored.ScheduledFor.After(time.Now()))

	members, err := mr.ZMembers(scheduledTasks)
	require.NoError(t, err)
	assert.Equal(t, []string{task.ID}, members)
}

func TestQueue_DueScheduledTaskIsPromoted(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	task := domain.NewIntakeTask()
	require.NoError(t, q.client.ZAdd(ctx, scheduledTasks, redis.Z{Score: float64(time.Now().Add(-time.Second).Unix()), Member: task.ID}).Err())
	require.NoError(t, q.client.Set(ctx, taskKeyPrefix+task.ID, mustJSON(t, task), taskTTL).Err())

	got, err := q.DequeueWithTimeout(ctx, 0)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, task.ID, got.ID)
}

func TestQueue_GetTaskUnknown(t *testing.T) {
	q, _ := newTestQueue(t)

	_, err := q.GetTask(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, q.Ack(context.Background(), "missing"), domain.ErrNotFound)
}

func TestQueue_MessageWithoutTaskIsDropped(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: taskStream,
		Values: map[string]interface{}{"task_id": "gone"},
	}).Err())

	got, err := q.DequeueWithTimeout(ctx, 0)
	require.NoError(t, err)
	assert.Nil(t, got)

	n, err := q.client.XLen(ctx, taskStream).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestQueue_Stats(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	done := domain.NewIntakeTask()
	waiting := domain.NewIndexTask("/")
	require.NoError(t, q.Enqueue(ctx, done))
	_, err := q.DequeueWithTimeout(ctx, 0)
	require.NoError(t, err)
	require.NoError(t, q.Ack(ctx, done.ID))
	require.NoError(t, q.Enqueue(ctx, waiting))

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.PendingCount)
	assert.Equal(t, int64(1), stats.CompletedCount)
	assert.Zero(t, stats.FailedCount)
}

func TestQueue_Ping(t *testing.T) {
	q, _ := newTestQueue(t)
	assert.NoError(t, q.Ping(context.Background()))
	assert.NoError(t, q.Close())
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}
