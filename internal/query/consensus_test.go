package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/steamhub/pkg/records"
)

func setupTestClient(t *testing.T) *records.Client {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	client := records.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func testRegistry(shard int) *Registry {
	r := NewRegistry()
	r.Register("shard", func(ctx context.Context) (string, error) {
		return fmt.Sprintf("shard-%d", shard), nil
	})
	r.Register("empty", func(ctx context.Context) (string, error) {
		return "", nil
	})
	r.Register("fails", func(ctx context.Context) (string, error) {
		return "", errors.New("disk on fire")
	})
	r.Register("panics", func(ctx context.Context) (string, error) {
		panic("boom")
	})
	return r
}

// newShards returns one coordinator per shard sharing the same store.
func newShards(t *testing.T, client *records.Client, count int) []*Coordinator {
	shards := make([]*Coordinator, count)
	for i := range shards {
		c, err := NewCoordinator(client, Options{
			ShardID:      i,
			ShardCount:   count,
			Registry:     testRegistry(i),
			PollInterval: 5 * time.Millisecond,
			MaxPolls:     20,
		})
		require.NoError(t, err)
		shards[i] = c
	}
	return shards
}

func TestNewCoordinatorValidation(t *testing.T) {
	client := setupTestClient(t)

	_, err := NewCoordinator(client, Options{ShardID: 0, ShardCount: 0})
	assert.Error(t, err)
	_, err = NewCoordinator(client, Options{ShardID: 2, ShardCount: 2})
	assert.Error(t, err)
	_, err = NewCoordinator(client, Options{ShardID: -1, ShardCount: 2})
	assert.Error(t, err)
}

func TestConsensusCompletes(t *testing.T) {
	for _, count := range []int{1, 2, 5} {
		t.Run(fmt.Sprintf("%d shards", count), func(t *testing.T) {
			client := setupTestClient(t)
			ctx := context.Background()
			shards := newShards(t, client, count)

			job, err := shards[0].Start(ctx, "shard")
			require.NoError(t, err)
			assert.NotEmpty(t, job)

			for i := 1; i < count; i++ {
				done, err := shards[0].CheckCompleted(ctx)
				require.NoError(t, err)
				assert.False(t, done, "completed with only %d of %d responses", i, count)

				require.NoError(t, shards[i].Respond(ctx, ""))
			}

			done, err := shards[0].CheckCompleted(ctx)
			require.NoError(t, err)
			assert.True(t, done)

			result, err := shards[0].Wait(ctx)
			require.NoError(t, err)
			assert.Equal(t, job, result.Job)
			assert.Equal(t, "shard", result.Query)
			require.Len(t, result.Responses, count)
			for i, r := range result.Responses {
				assert.Equal(t, fmt.Sprintf("shard-%d", i), r)
			}

			running, err := shards[0].InProgress(ctx)
			require.NoError(t, err)
			assert.False(t, running)

			// Slots stay readable after the wait.
			responses, err := shards[0].Responses(ctx)
			require.NoError(t, err)
			assert.Equal(t, result.Responses, responses)
		})
	}
}

func TestStartWhileInProgress(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()
	shards := newShards(t, client, 2)

	_, err := shards[0].Start(ctx, "shard")
	require.NoError(t, err)

	_, err = shards[1].Start(ctx, "empty")
	assert.ErrorIs(t, err, ErrQueryInProgress)

	// The running query is untouched.
	responses, err := shards[0].Responses(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"shard-0", ""}, responses)
}

func TestStartUnknownDiagnostic(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()
	shards := newShards(t, client, 1)

	_, err := shards[0].Start(ctx, "os.system('rm -rf /')")
	assert.ErrorIs(t, err, ErrUnknownDiagnostic)

	running, err := shards[0].InProgress(ctx)
	require.NoError(t, err)
	assert.False(t, running)
}

func TestStartClearsPreviousResponses(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()
	shards := newShards(t, client, 2)

	_, err := shards[0].Start(ctx, "shard")
	require.NoError(t, err)
	require.NoError(t, shards[1].Respond(ctx, ""))
	_, err = shards[0].Wait(ctx)
	require.NoError(t, err)

	_, err = shards[0].Start(ctx, "empty")
	require.NoError(t, err)

	responses, err := shards[0].Responses(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{EmptyResponse, ""}, responses)
}

func TestRespondCapturesFailures(t *testing.T) {
	tests := []struct {
		query string
		check func(t *testing.T, response string)
	}{
		{"empty", func(t *testing.T, r string) { assert.Equal(t, EmptyResponse, r) }},
		{"fails", func(t *testing.T, r string) { assert.Equal(t, "error: disk on fire", r) }},
		{"panics", func(t *testing.T, r string) { assert.True(t, strings.HasPrefix(r, "panic: boom\n")) }},
		{"unregistered", func(t *testing.T, r string) { assert.Contains(t, r, "unknown diagnostic") }},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			client := setupTestClient(t)
			ctx := context.Background()
			shards := newShards(t, client, 2)

			_, err := shards[0].Start(ctx, "shard")
			require.NoError(t, err)

			require.NoError(t, shards[1].Respond(ctx, tt.query))

			responses, err := shards[0].Responses(ctx)
			require.NoError(t, err)
			tt.check(t, responses[1])

			done, err := shards[0].CheckCompleted(ctx)
			require.NoError(t, err)
			assert.True(t, done, "a failed evaluation must still count as a response")
		})
	}
}

func TestRespondWithoutQuery(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()
	shards := newShards(t, client, 1)

	require.NoError(t, shards[0].Respond(ctx, ""))

	responses, err := shards[0].Responses(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{NoQueryResponse}, responses)
}

func TestCheckCompletedWhenIdle(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()
	shards := newShards(t, client, 1)

	require.NoError(t, shards[0].Respond(ctx, "shard"))

	done, err := shards[0].CheckCompleted(ctx)
	require.NoError(t, err)
	assert.False(t, done)
}

func TestHasResponded(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()
	shards := newShards(t, client, 2)

	responded, err := shards[1].HasResponded(ctx)
	require.NoError(t, err)
	assert.True(t, responded)

	_, err = shards[0].Start(ctx, "shard")
	require.NoError(t, err)

	responded, err = shards[1].HasResponded(ctx)
	require.NoError(t, err)
	assert.False(t, responded)

	require.NoError(t, shards[1].Respond(ctx, ""))
	responded, err = shards[1].HasResponded(ctx)
	require.NoError(t, err)
	assert.True(t, responded)
}

func TestWaitTimesOut(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()
	shards := newShards(t, client, 3)

	_, err := shards[0].Start(ctx, "shard")
	require.NoError(t, err)
	require.NoError(t, shards[2].Respond(ctx, ""))

	result, err := shards[0].Wait(ctx)
	assert.ErrorIs(t, err, ErrQueryTimedOut)
	require.NotNil(t, result)
	assert.Equal(t, []string{"shard-0", "", "shard-2"}, result.Responses)
	assert.Equal(t, []int{1}, pending(result.Responses))

	running, err := shards[0].InProgress(ctx)
	require.NoError(t, err)
	assert.False(t, running)

	_, err = shards[0].Start(ctx, "shard")
	assert.NoError(t, err)
}

func TestWaitContextCancelled(t *testing.T) {
	client := setupTestClient(t)
	shards := newShards(t, client, 2)

	_, err := shards[0].Start(context.Background(), "shard")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = shards[0].Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCancel(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()
	shards := newShards(t, client, 2)

	_, err := shards[0].Start(ctx, "shard")
	require.NoError(t, err)
	require.NoError(t, shards[1].Cancel(ctx))

	running, err := shards[0].InProgress(ctx)
	require.NoError(t, err)
	assert.False(t, running)

	_, err = shards[1].Start(ctx, "shard")
	assert.NoError(t, err)
}
