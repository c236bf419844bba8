// Package executor implements the wave-based parallel scheduler: it walks
// the target graph, dispatching Ready targets to a bounded worker pool and
// feeding completions back into the graph until every node reaches a
// terminal state.
//
// Tracking the in-flight build goroutines through a single errgroup.Group
// follows internal/mcp/integration_test.go's "errgroup for structured
// concurrency with bounded parallelism", while the admission count itself
// is kept on the scheduler's own goroutine (the same single-owner counter
// shape as the semaphore in internal/analysis/relationship_analyzer.go,
// just non-blocking so the scheduler can keep draining completions while
// the pool is full).
package executor

import (
	"context"
	"crypto/sha256"
	"os"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wavebuild/wavebuild/internal/artifact"
	"github.com/wavebuild/wavebuild/internal/cache"
	"github.com/wavebuild/wavebuild/internal/events"
	"github.com/wavebuild/wavebuild/internal/fingerprint"
	"github.com/wavebuild/wavebuild/internal/graph"
	"github.com/wavebuild/wavebuild/internal/logx"
	"github.com/wavebuild/wavebuild/internal/metrics"
	"github.com/wavebuild/wavebuild/internal/types"
	"github.com/wavebuild/wavebuild/internal/wverrors"
	"github.com/wavebuild/wavebuild/pkg/handlerapi"
)

// FaultPolicy controls what happens when a target fails.
type FaultPolicy int

const (
	// FailFast stops admitting new work once any target fails, letting
	// in-flight builds drain, then returns.
	FailFast FaultPolicy = iota
	// KeepGoing continues building every target whose dependencies are
	// still satisfied, skipping only the failed target's transitive
	// dependents.
	KeepGoing
)

// Options configures a Run.
type Options struct {
	Workers        int
	FaultPolicy    FaultPolicy
	WorkspaceRoot  string
	CheckpointPath string // empty disables checkpointing
	HandlerTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.HandlerTimeout <= 0 {
		o.HandlerTimeout = 10 * time.Minute
	}
	return o
}

// Result summarizes a completed (or cancelled) Run.
type Result struct {
	Completed []types.TargetID
	Cached    []types.TargetID
	Failed    []types.TargetID
	Skipped   []types.TargetID
	Cancelled bool
}

// cancelToken adapts an atomic flag to handlerapi.CancelToken.
type cancelToken struct{ flag *atomic.Bool }

func (c cancelToken) Cancelled() bool { return c.flag.Load() }

// Executor runs a build over a target graph.
type Executor struct {
	graph     *graph.Graph
	store     *cache.Store
	artifacts *artifact.Store
	events    *events.Publisher
	handlers  map[dispatchKey]handlerapi.Handler
	metrics   *metrics.ExecutorMetrics
}

func New(g *graph.Graph, store *cache.Store, artifacts *artifact.Store, pub *events.Publisher) *Executor {
	return &Executor{
		graph:     g,
		store:     store,
		artifacts: artifacts,
		events:    pub,
		handlers:  make(map[dispatchKey]handlerapi.Handler),
	}
}

// SetMetrics attaches a metrics registry's executor collectors. Optional —
// a nil or never-called-on Executor just skips metric updates, matching
// the events.Publisher's nil-is-fine convention above.
func (e *Executor) SetMetrics(m *metrics.ExecutorMetrics) {
	e.metrics = m
}

// RegisterHandler associates h with the (lang, kind) pair. A target
// whose (language, kind) has no registered handler fails immediately when
// it becomes ready.
func (e *Executor) RegisterHandler(lang types.Language, kind types.Kind, h handlerapi.Handler) {
	e.handlers[dispatchKey{lang, kind}] = h
}

func (e *Executor) handlerFor(t types.Target) (handlerapi.Handler, bool) {
	h, ok := e.handlers[dispatchKey{t.Language, t.Kind}]
	return h, ok
}

type completion struct {
	id       types.TargetID
	outcome  handlerapi.BuildOutcome
	err      error
	duration time.Duration
}

// Run drives the build to completion (or cancellation). It blocks until
// every target reaches a terminal state, ctx is cancelled, or fail-fast
// fault policy stops admitting new work and in-flight builds drain.
//
// Run owns all graph-state mutation and bookkeeping from a single
// goroutine (itself): only the completion channel crosses goroutine
// boundaries, so nothing here needs a mutex.
func (e *Executor) Run(ctx context.Context, opts Options) (Result, error) {
	opts = opts.withDefaults()
	cancelFlag := &atomic.Bool{}
	token := cancelToken{flag: cancelFlag}

	runStart := time.Now()
	total := len(e.graph.AllIDs())
	e.publish(events.Event{Kind: events.KindBuildStarted, Timestamp: runStart, TotalTargets: total, Parallelism: opts.Workers})

	doneCh := make(chan completion)
	var g errgroup.Group

	dispatch := func(id types.TargetID) {
		g.Go(func() error {
			start := time.Now()
			outcome, err := e.buildOne(ctx, id, opts, token)
			select {
			case doneCh <- completion{id: id, outcome: outcome, err: err, duration: time.Since(start)}:
			case <-ctx.Done():
			}
			return nil
		})
	}

	var result Result
	terminal := 0
	active := 0
	building := make(map[types.TargetID]bool)

	queue := e.collectReady()
	for _, id := range queue {
		e.graph.SetState(id, types.Ready)
	}

	for terminal < total {
		if ctx.Err() != nil && active == 0 {
			cancelFlag.Store(true)
			result.Cancelled = true
			e.publishBuildCompleted(result, runStart)
			return result, ctx.Err()
		}

		for len(queue) > 0 && active < opts.Workers && !cancelFlag.Load() {
			id := queue[0]
			queue = queue[1:]
			e.graph.SetState(id, types.Building)
			building[id] = true
			dispatch(id)
			active++
		}
		e.reportGauges(len(queue), active)

		if active == 0 {
			// Nothing building and nothing admissible: either every
			// admitted target has finished, or fail-fast stopped
			// admission. Targets marked Skipped behind a failure, and
			// Ready targets fail-fast never dispatched, are not counted
			// in terminal, so the loop ends here rather than through
			// terminal reaching total.
			break
		}

		select {
		case c := <-doneCh:
			active--
			terminal++
			delete(building, c.id)

			newlyReady := e.handleCompletion(c, opts, cancelFlag, &result)
			queue = append(queue, newlyReady...)
			sortReadyQueue(e.graph, queue)

			// A completion may have dynamically extended the graph
			// (produced_discoveries), so total can only be read fresh —
			// never cached from before Run started.
			total = len(e.graph.AllIDs())

			e.maybeCheckpoint(opts, &result, building)

		case <-ctx.Done():
			cancelFlag.Store(true)
			_ = g.Wait()
			result.Cancelled = true
			e.publishBuildCompleted(result, runStart)
			return result, ctx.Err()
		}
	}

	_ = g.Wait()
	e.publishBuildCompleted(result, runStart)
	return result, nil
}

// collectReady returns every Pending node whose dependencies are all
// satisfied, in depth-then-lexicographic order.
func (e *Executor) collectReady() []types.TargetID {
	var ready []types.TargetID
	for _, id := range e.graph.AllIDs() {
		state, _ := e.graph.State(id)
		if state != types.Pending {
			continue
		}
		if e.depsSatisfied(id) {
			ready = append(ready, id)
		}
	}
	sortReadyQueue(e.graph, ready)
	return ready
}

func (e *Executor) depsSatisfied(id types.TargetID) bool {
	for _, dep := range e.graph.Deps(id) {
		state, ok := e.graph.State(dep)
		if !ok || !state.IsSatisfied() {
			return false
		}
	}
	return true
}

// sortReadyQueue orders by depth ascending, then lexicographically by id,
// giving a shallow-first, deterministic schedule.
func sortReadyQueue(g *graph.Graph, ids []types.TargetID) {
	sort.Slice(ids, func(i, j int) bool {
		di, _ := g.Depth(ids[i])
		dj, _ := g.Depth(ids[j])
		if di != dj {
			return di < dj
		}
		return ids[i].String() < ids[j].String()
	})
}

// reportGauges pushes the current queue depth and active-worker count to
// the attached metrics registry, a no-op when none is attached.
func (e *Executor) reportGauges(queueDepth, active int) {
	if e.metrics == nil {
		return
	}
	e.metrics.QueueDepth.Set(float64(queueDepth))
	e.metrics.ActiveWorkers.Set(float64(active))
}

// recordOutcome increments the per-outcome completion counter, a no-op
// when no metrics registry is attached.
func (e *Executor) recordOutcome(outcome string) {
	if e.metrics == nil {
		return
	}
	e.metrics.Completed.WithLabelValues(outcome).Inc()
}

func (e *Executor) publish(ev events.Event) {
	if e.events != nil {
		e.events.Publish(ev)
	}
}

func (e *Executor) publishBuildCompleted(r Result, runStart time.Time) {
	e.publish(events.Event{
		Kind:      events.KindBuildCompleted,
		Timestamp: time.Now(),
		Duration:  time.Since(runStart),
		Built:     len(r.Completed),
		Cached:    len(r.Cached),
		Failed:    len(r.Failed),
	})
}

// buildOne runs the full Plan/NeedsRebuild/Build sequence for a single
// target, including the cache short-circuit.
func (e *Executor) buildOne(ctx context.Context, id types.TargetID, opts Options, token cancelToken) (handlerapi.BuildOutcome, error) {
	target, ok := e.graph.Target(id)
	if !ok {
		return handlerapi.BuildOutcome{}, wverrors.New(wverrors.KindBuild, "target vanished from graph: "+id.String())
	}

	e.publish(events.Event{Kind: events.KindTargetStarted, Timestamp: time.Now(), Target: id})

	handler, ok := e.handlerFor(target)
	if !ok {
		return handlerapi.BuildOutcome{Status: handlerapi.StatusFailed}, wverrors.New(wverrors.KindBuild, "no handler registered for "+string(target.Language)+"/"+string(target.Kind))
	}

	if schemaHandler, ok := handler.(handlerapi.ConfigSchema); ok {
		if err := handlerapi.ValidateHandlerConfig(schemaHandler.HandlerConfigSchema(), target.HandlerConfig); err != nil {
			return handlerapi.BuildOutcome{Status: handlerapi.StatusFailed}, wverrors.Wrap(wverrors.KindConfig, "handler_config invalid for "+id.String(), err)
		}
	}

	plan, err := handler.Plan(target, opts.WorkspaceRoot)
	if err != nil {
		return handlerapi.BuildOutcome{Status: handlerapi.StatusFailed}, wverrors.Wrap(wverrors.KindBuild, "plan failed for "+id.String(), err)
	}

	prevEntry, hadPrev := e.store.GetTarget(id.String())
	actionProbe := func(key string) bool {
		_, hit := e.store.GetAction(key)
		return hit
	}
	needsRebuild, err := handler.NeedsRebuild(target, prevEntry.SourceFP, actionProbe)
	if err != nil {
		return handlerapi.BuildOutcome{Status: handlerapi.StatusFailed}, wverrors.Wrap(wverrors.KindBuild, "needs_rebuild check failed for "+id.String(), err)
	}
	if hadPrev && !needsRebuild {
		return handlerapi.BuildOutcome{Status: handlerapi.StatusCached, Outputs: plan.ExpectedOutputs}, nil
	}

	buildCtx, cancel := context.WithTimeout(ctx, opts.HandlerTimeout)
	defer cancel()

	outcome, err := handler.Build(buildCtx, target, plan, token)
	if err != nil {
		return handlerapi.BuildOutcome{Status: handlerapi.StatusFailed, Logs: outcome.Logs}, wverrors.Wrap(wverrors.KindBuild, "build failed for "+id.String(), err)
	}

	if outcome.Status == handlerapi.StatusSuccess {
		if err := e.recordSuccess(target, plan, outcome); err != nil {
			logx.Warnf("recordSuccess(%s): %v", id, err)
		}
	}
	return outcome, nil
}

// recordSuccess hashes the target's sources, puts output bytes into the
// artifact store, and writes back the target cache entry.
func (e *Executor) recordSuccess(target types.Target, plan handlerapi.Plan, outcome handlerapi.BuildOutcome) error {
	sourceFP := make(map[string]types.ContentFingerprint, len(plan.Inputs))
	for _, in := range plan.Inputs {
		fp, err := fingerprint.Full(in)
		if err != nil {
			continue // input may be a generated/virtual path; best-effort fingerprinting
		}
		sourceFP[in] = fp
	}

	var artifactIDs []types.ArtifactID
	for _, outPath := range outcome.Outputs {
		data, err := os.ReadFile(outPath)
		if err != nil {
			continue
		}
		id, err := e.artifacts.Put(data)
		if err != nil {
			return err
		}
		artifactIDs = append(artifactIDs, id)
	}

	entry := cache.CacheEntry{
		TargetID:       target.ID.String(),
		SourceFP:       sourceFP,
		DepsHash:       hashDeps(target.DeclaredDeps),
		OutputArtifact: artifactIDs,
	}
	e.store.PutTarget(entry)
	return nil
}

func hashDeps(deps []types.TargetID) [32]byte {
	names := make([]string, len(deps))
	for i, d := range deps {
		names[i] = d.String()
	}
	sort.Strings(names)
	h := sha256.New()
	for _, n := range names {
		h.Write([]byte(n))
		h.Write([]byte{0})
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// handleCompletion applies a finished build's outcome to the graph and
// returns any newly-ready dependents. Called only from Run's own
// goroutine.
func (e *Executor) handleCompletion(c completion, opts Options, cancelFlag *atomic.Bool, result *Result) []types.TargetID {
	id := c.id
	status := c.outcome.Status
	if c.err != nil && status != handlerapi.StatusFailed {
		status = handlerapi.StatusFailed
	}

	var discoveryReady []types.TargetID
	switch status {
	case handlerapi.StatusSuccess:
		e.graph.SetState(id, types.Success)
		e.graph.SetOutputs(id, c.outcome.Outputs)
		result.Completed = append(result.Completed, id)
		e.recordOutcome("success")
		e.publish(events.Event{
			Kind:       events.KindTargetCompleted,
			Timestamp:  time.Now(),
			Target:     id,
			Duration:   c.duration,
			OutputSize: outputSize(c.outcome.Outputs),
		})
		ready, err := e.applyDiscoveries(id, c.outcome)
		if err != nil {
			logx.Warnf("applyDiscoveries(%s): %v", id, err)
		}
		discoveryReady = ready
	case handlerapi.StatusCached:
		e.graph.SetState(id, types.Cached)
		e.graph.SetOutputs(id, c.outcome.Outputs)
		result.Cached = append(result.Cached, id)
		e.recordOutcome("cached")
		e.publish(events.Event{Kind: events.KindTargetCached, Timestamp: time.Now(), Target: id})
	case handlerapi.StatusCancelled:
		result.Cancelled = true
		e.graph.SetState(id, types.Failed)
		result.Failed = append(result.Failed, id)
		e.recordOutcome("cancelled")
		e.publish(events.Event{Kind: events.KindTargetFailed, Timestamp: time.Now(), Target: id, Reason: "cancelled"})
	default: // Failed
		e.graph.SetState(id, types.Failed)
		result.Failed = append(result.Failed, id)
		e.recordOutcome("failed")
		reason := "build failed"
		if c.err != nil {
			reason = c.err.Error()
		}
		e.publish(events.Event{Kind: events.KindTargetFailed, Timestamp: time.Now(), Target: id, Reason: reason})
		for _, dep := range e.graph.TransitiveRdeps(id) {
			if state, _ := e.graph.State(dep); !state.IsTerminal() {
				e.graph.SetState(dep, types.Skipped)
				result.Skipped = append(result.Skipped, dep)
			}
		}
		if opts.FaultPolicy == FailFast {
			cancelFlag.Store(true)
		}
	}

	newlyReady := append([]types.TargetID{}, discoveryReady...)
	if cancelFlag.Load() {
		return nil
	}

	for _, dep := range e.graph.Rdeps(id) {
		state, ok := e.graph.State(dep)
		if !ok || state != types.Pending {
			continue
		}
		if e.depsSatisfied(dep) {
			e.graph.SetState(dep, types.Ready)
			newlyReady = append(newlyReady, dep)
		}
	}
	return newlyReady
}

// applyDiscoveries extends the graph with outcome's produced discoveries
// and returns any newly-created targets that are immediately Ready (no
// declared dependencies, or all already satisfied).
func (e *Executor) applyDiscoveries(origin types.TargetID, outcome handlerapi.BuildOutcome) ([]types.TargetID, error) {
	if len(outcome.Discoveries) == 0 && len(outcome.NewEdges) == 0 {
		return nil, nil
	}
	created := make([]types.Target, len(outcome.Discoveries))
	for i, d := range outcome.Discoveries {
		created[i] = d.Target
	}
	edges := make([]graph.Edge, len(outcome.NewEdges))
	for i, ed := range outcome.NewEdges {
		edges[i] = graph.Edge{From: ed.From, To: ed.To}
	}
	if err := e.graph.DynamicExtend(graph.Discovery{
		Origin:      origin,
		Created:     created,
		CreatedDeps: edges,
		Timestamp:   time.Now(),
	}); err != nil {
		return nil, err
	}

	var ready []types.TargetID
	for _, d := range outcome.Discoveries {
		id := d.Target.ID
		if state, ok := e.graph.State(id); ok && state == types.Pending && e.depsSatisfied(id) {
			e.graph.SetState(id, types.Ready)
			ready = append(ready, id)
		}
	}
	return ready, nil
}

func (e *Executor) maybeCheckpoint(opts Options, result *Result, building map[types.TargetID]bool) {
	if opts.CheckpointPath == "" {
		return
	}
	inProgressNames := make([]string, 0, len(building))
	for id := range building {
		inProgressNames = append(inProgressNames, id.String())
	}
	cp := Checkpoint{
		CompletedIDs:     idStrings(result.Completed),
		CachedIDs:        idStrings(result.Cached),
		FailedIDs:        idStrings(result.Failed),
		SkippedIDs:       idStrings(result.Skipped),
		InProgressIDs:    inProgressNames,
		GraphFingerprint: graphFingerprint(e.graph),
	}
	if err := WriteCheckpoint(opts.CheckpointPath, cp); err != nil {
		logx.Warnf("checkpoint write failed: %v", err)
	}
}

// outputSize sums the on-disk size of every output path, best-effort —
// a missing file (virtual/generated output) contributes zero rather than
// failing the event.
func outputSize(outputs []string) int64 {
	var total int64
	for _, p := range outputs {
		if fi, err := os.Stat(p); err == nil {
			total += fi.Size()
		}
	}
	return total
}

func idStrings(ids []types.TargetID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// Resume loads a checkpoint and marks its completed/cached/failed/skipped
// targets as already terminal before a subsequent Run, refusing to resume
// against a graph whose shape has changed since the checkpoint was
// written.
func Resume(g *graph.Graph, path string) error {
	cp, err := ReadCheckpoint(path)
	if err != nil {
		return err
	}
	if cp.GraphFingerprint != graphFingerprint(g) {
		return wverrors.New(wverrors.KindBuild, "checkpoint graph fingerprint mismatch: workspace changed since checkpoint was written")
	}
	for _, name := range cp.CompletedIDs {
		g.SetState(types.MustIntern(name), types.Success)
	}
	for _, name := range cp.CachedIDs {
		g.SetState(types.MustIntern(name), types.Cached)
	}
	for _, name := range cp.FailedIDs {
		g.SetState(types.MustIntern(name), types.Failed)
	}
	for _, name := range cp.SkippedIDs {
		g.SetState(types.MustIntern(name), types.Skipped)
	}
	// InProgressIDs are left Pending: an interrupted build is retried from
	// scratch, relying on the handler/cache contract's idempotency.
	return nil
}
