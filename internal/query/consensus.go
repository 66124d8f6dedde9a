// Package query runs a named diagnostic on every shard and gathers the
// answers through the shared record store.
//
// One shard acts as coordinator: it marks a query in progress, clears every
// response slot, answers locally and broadcasts the job. Every other shard
// answers into its own slot when it receives the broadcast. The coordinator
// polls until no slot is empty. A detached coordinator, such as the operator
// CLI, skips the local answer and leaves every slot to the shards.
package query

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dyluth/steamhub/internal/logging"
	"github.com/dyluth/steamhub/internal/metrics"
	"github.com/dyluth/steamhub/pkg/records"
)

const (
	inProgressPath = "in_progress"
	queryPath      = "query"
	jobPath        = "job"
	responsePrefix = "response"

	flagTrue  = "true"
	flagFalse = "false"

	// EmptyResponse stands in for a diagnostic that returned nothing, so the
	// slot still counts as answered.
	EmptyResponse = "-- EMPTY --"

	// NoQueryResponse is written when a shard is asked to respond but no
	// query text is stored.
	NoQueryResponse = "ERROR"
)

// Defaults used when Options leave them unset.
const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultMaxPolls     = 120
)

var (
	// ErrQueryInProgress is returned by Start while another query is running.
	ErrQueryInProgress = errors.New("a query is already in progress")

	// ErrQueryTimedOut is returned by Wait when shards did not all answer in time.
	ErrQueryTimedOut = errors.New("query timed out waiting for shard responses")

	// ErrUnknownDiagnostic is returned by Start for a name that is not registered.
	ErrUnknownDiagnostic = errors.New("unknown diagnostic")
)

// Options configures a Coordinator.
type Options struct {
	ShardID      int
	ShardCount   int
	Registry     *Registry
	PollInterval time.Duration
	MaxPolls     int // Polls before Wait gives up
	Logger       *zap.Logger
	Metrics      *metrics.Metrics

	// Detached coordinators start and collect queries without holding a
	// shard slot themselves, as the operator CLI does. ShardID is ignored.
	Detached bool
}

// Coordinator is one shard's handle on the global query job.
type Coordinator struct {
	client       *records.Client
	store        *records.Store
	shardID      int
	shardCount   int
	registry     *Registry
	pollInterval time.Duration
	maxPolls     int
	detached     bool
	logger       *zap.Logger
	metrics      *metrics.Metrics
}

// detachedOrigin is the announcement origin of a detached coordinator.
const detachedOrigin = -1

// Result is the outcome of a finished query.
type Result struct {
	Job       string
	Query     string
	Responses []string // Indexed by shard; empty means the shard never answered
}

// NewCoordinator creates the query handle for one shard.
func NewCoordinator(client *records.Client, opts Options) (*Coordinator, error) {
	if opts.ShardCount < 1 {
		return nil, fmt.Errorf("shard count must be >= 1, got %d", opts.ShardCount)
	}
	if opts.Detached {
		opts.ShardID = detachedOrigin
	} else if opts.ShardID < 0 || opts.ShardID >= opts.ShardCount {
		return nil, fmt.Errorf("shard id %d out of range (shard count %d)", opts.ShardID, opts.ShardCount)
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.MaxPolls <= 0 {
		opts.MaxPolls = DefaultMaxPolls
	}

	return &Coordinator{
		client:       client,
		store:        client.Namespace(records.NamespaceQueries),
		shardID:      opts.ShardID,
		shardCount:   opts.ShardCount,
		registry:     opts.Registry,
		pollInterval: opts.PollInterval,
		maxPolls:     opts.MaxPolls,
		detached:     opts.Detached,
		logger:       logging.OrNop(opts.Logger),
		metrics:      opts.Metrics,
	}, nil
}

// ShardID returns this shard's index, or -1 for a detached coordinator.
func (c *Coordinator) ShardID() int {
	return c.shardID
}

// Registry returns the diagnostics this shard answers.
func (c *Coordinator) Registry() *Registry {
	return c.registry
}

// BroadcastChannel is the channel query jobs are announced on.
func BroadcastChannel() string {
	return records.BroadcastChannel(records.NamespaceQueries, "query")
}

func responsePath(shard int) string {
	return records.Path(responsePrefix, strconv.Itoa(shard))
}

// InProgress reports whether a query is currently running.
func (c *Coordinator) InProgress(ctx context.Context) (bool, error) {
	raw, err := c.store.GetOr(ctx, inProgressPath, flagFalse)
	if err != nil {
		return false, err
	}
	return raw == flagTrue, nil
}

// Start begins a query as coordinator and returns its job ID.
//
// Returns ErrQueryInProgress without writing anything if a query is already
// running. The in-progress check and the flag write are separate operations,
// so two shards starting at the same moment may both succeed.
func (c *Coordinator) Start(ctx context.Context, name string) (string, error) {
	if _, ok := c.registry.Lookup(name); !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownDiagnostic, name)
	}

	running, err := c.InProgress(ctx)
	if err != nil {
		return "", err
	}
	if running {
		return "", ErrQueryInProgress
	}

	job := uuid.New().String()
	if err := c.store.Set(ctx, inProgressPath, flagTrue); err != nil {
		return "", err
	}
	if err := c.store.Set(ctx, queryPath, name); err != nil {
		return "", err
	}
	if err := c.store.Set(ctx, jobPath, job); err != nil {
		return "", err
	}
	for shard := 0; shard < c.shardCount; shard++ {
		if err := c.store.Set(ctx, responsePath(shard), ""); err != nil {
			return "", err
		}
	}

	c.logger.Info("query_started",
		zap.String("job", job),
		zap.String("query", name),
		zap.Int("shard", c.shardID),
		zap.Int("shard_count", c.shardCount))

	if !c.detached {
		if err := c.Respond(ctx, name); err != nil {
			return "", err
		}
	}

	if err := c.client.Publish(ctx, BroadcastChannel(), encodeAnnouncement(job, c.shardID)); err != nil {
		c.logger.Warn("query_broadcast_failed", zap.String("job", job), zap.Error(err))
	}
	return job, nil
}

// Respond evaluates a query and writes this shard's response slot. An empty
// name means the stored query. Evaluation failures, including panics, are
// written as the response text rather than returned.
func (c *Coordinator) Respond(ctx context.Context, name string) error {
	if c.detached {
		return fmt.Errorf("detached coordinator has no response slot")
	}
	if name == "" {
		stored, err := c.store.GetOr(ctx, queryPath, "")
		if err != nil {
			return err
		}
		name = stored
	}

	response := c.evaluate(ctx, name)
	if err := c.store.Set(ctx, responsePath(c.shardID), response); err != nil {
		return err
	}

	c.logger.Debug("query_responded", zap.String("query", name), zap.Int("shard", c.shardID))
	return nil
}

func (c *Coordinator) evaluate(ctx context.Context, name string) (response string) {
	if name == "" {
		c.metrics.QueryResponse("error")
		return NoQueryResponse
	}

	diagnostic, ok := c.registry.Lookup(name)
	if !ok {
		c.metrics.QueryResponse("error")
		return fmt.Sprintf("error: %v: %s", ErrUnknownDiagnostic, name)
	}

	defer func() {
		if r := recover(); r != nil {
			c.metrics.QueryResponse("error")
			c.logger.Error("query_diagnostic_panic", zap.String("query", name), zap.Any("panic", r))
			response = fmt.Sprintf("panic: %v\n%s", r, debug.Stack())
		}
	}()

	out, err := diagnostic(ctx)
	if err != nil {
		c.metrics.QueryResponse("error")
		return fmt.Sprintf("error: %v", err)
	}
	c.metrics.QueryResponse("ok")
	if out == "" {
		return EmptyResponse
	}
	return out
}

// HasResponded reports whether this shard's slot holds an answer. A missing
// slot counts as answered, since no query has asked for it.
func (c *Coordinator) HasResponded(ctx context.Context) (bool, error) {
	value, ok, err := c.store.Lookup(ctx, responsePath(c.shardID))
	if err != nil {
		return false, err
	}
	return !ok || value != "", nil
}

// Responses reads every shard's response slot.
func (c *Coordinator) Responses(ctx context.Context) ([]string, error) {
	responses := make([]string, c.shardCount)
	for shard := 0; shard < c.shardCount; shard++ {
		value, err := c.store.GetOr(ctx, responsePath(shard), "")
		if err != nil {
			return nil, err
		}
		responses[shard] = value
	}
	return responses, nil
}

// CheckCompleted reports whether a query is in progress and every shard has
// answered.
func (c *Coordinator) CheckCompleted(ctx context.Context) (bool, error) {
	running, err := c.InProgress(ctx)
	if err != nil || !running {
		return false, err
	}
	responses, err := c.Responses(ctx)
	if err != nil {
		return false, err
	}
	for _, r := range responses {
		if r == "" {
			return false, nil
		}
	}
	return true, nil
}

// Wait polls until the running query completes, then clears the in-progress
// flag and query text and returns the responses. Response slots are left in
// place until the next Start.
//
// After MaxPolls polls without completion the query is abandoned: the flag
// is cleared and the partial responses are returned with ErrQueryTimedOut.
func (c *Coordinator) Wait(ctx context.Context) (*Result, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	waitStart := time.Now()
	for polls := 0; ; polls++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		done, err := c.CheckCompleted(ctx)
		if err != nil {
			return nil, err
		}
		if done {
			result, err := c.finish(ctx)
			if err != nil {
				return nil, err
			}
			c.metrics.QueryFinished("completed")
			c.logger.Info("query_completed",
				zap.String("job", result.Job),
				zap.String("query", result.Query),
				zap.Duration("duration", time.Since(waitStart).Round(time.Millisecond)))
			return result, nil
		}

		if polls >= c.maxPolls {
			result, err := c.finish(ctx)
			if err != nil {
				return nil, err
			}
			c.metrics.QueryFinished("timed_out")
			c.logger.Warn("query_timed_out",
				zap.String("job", result.Job),
				zap.Ints("pending_shards", pending(result.Responses)))
			return result, ErrQueryTimedOut
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Cancel abandons the running query so a new one can start.
func (c *Coordinator) Cancel(ctx context.Context) error {
	if _, err := c.finish(ctx); err != nil {
		return err
	}
	c.metrics.QueryFinished("cancelled")
	c.logger.Info("query_cancelled", zap.Int("shard", c.shardID))
	return nil
}

// finish reads the job and responses, then resets the flag and query text.
func (c *Coordinator) finish(ctx context.Context) (*Result, error) {
	job, err := c.store.GetOr(ctx, jobPath, "")
	if err != nil {
		return nil, err
	}
	name, err := c.store.GetOr(ctx, queryPath, "")
	if err != nil {
		return nil, err
	}
	responses, err := c.Responses(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.store.Set(ctx, inProgressPath, flagFalse); err != nil {
		return nil, err
	}
	if err := c.store.Set(ctx, queryPath, ""); err != nil {
		return nil, err
	}
	return &Result{Job: job, Query: name, Responses: responses}, nil
}

func pending(responses []string) []int {
	var shards []int
	for i, r := range responses {
		if r == "" {
			shards = append(shards, i)
		}
	}
	return shards
}
