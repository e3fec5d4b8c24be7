// Package search runs member searches: it fans a request out into one
// command per location pattern, in bounded batches, and folds the parsed
// output into a single result.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/mbrgrep/internal/cache"
	"github.com/standardbeagle/mbrgrep/internal/command"
	"github.com/standardbeagle/mbrgrep/internal/debug"
	mbrerrors "github.com/standardbeagle/mbrgrep/internal/errors"
	"github.com/standardbeagle/mbrgrep/internal/qsys"
	"github.com/standardbeagle/mbrgrep/internal/remote"
	"github.com/standardbeagle/mbrgrep/internal/searchtypes"
)

// Config holds the normalized orchestrator settings
type Config struct {
	MaxParallel int
	GrepPath    string
	Environment remote.Environment
	Exclude     []string            // doublestar globs matched against hit paths
	Cache       *cache.OutputCache // optional
}

// PlannedCommand is the command one pattern of a request resolves to
type PlannedCommand struct {
	Pattern      string
	Level        qsys.Level
	ResourcePath string
	Command      string
	Env          remote.Environment
}

// Line is the command line as the remote shell receives it
func (p PlannedCommand) Line() string {
	return remote.Wrap(p.Command, p.Env)
}

// Orchestrator executes search requests against one executor. Each
// running search is tracked by id so it can be cancelled as a whole or one
// pattern at a time.
type Orchestrator struct {
	executor remote.Executor
	config   Config

	mu       sync.Mutex
	searches map[string]*activeSearch
}

type activeSearch struct {
	cancel context.CancelFunc
	scopes map[int]*patternScope
}

type patternScope struct {
	pattern string
	cancel  context.CancelFunc
}

// New creates an orchestrator. Exclude globs and the environment are
// validated here so requests never fail on configuration.
func New(executor remote.Executor, cfg Config) (*Orchestrator, error) {
	if executor == nil {
		return nil, fmt.Errorf("search: executor is required")
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = DefaultMaxParallel
	}
	if cfg.MaxParallel > MaxParallelLimit {
		return nil, fmt.Errorf("search: max parallel %d exceeds limit %d", cfg.MaxParallel, MaxParallelLimit)
	}
	if cfg.GrepPath == "" {
		cfg.GrepPath = command.DefaultGrepPath
	}
	if cfg.Environment == remote.EnvCL {
		return nil, fmt.Errorf("search: the %s environment cannot run the search utility", cfg.Environment)
	}
	for _, pattern := range cfg.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("search: invalid exclude pattern %q", pattern)
		}
	}

	return &Orchestrator{
		executor: executor,
		config:   cfg,
		searches: make(map[string]*activeSearch),
	}, nil
}

// Config returns the normalized configuration
func (o *Orchestrator) Config() Config {
	return o.config
}

// Plan validates req and builds the command for every pattern without
// sending anything. Validation errors abort the whole request.
func (o *Orchestrator) Plan(req searchtypes.SearchRequest) ([]PlannedCommand, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	patterns, err := qsys.SplitAll(req.Patterns)
	if err != nil {
		return nil, err
	}

	plan := make([]PlannedCommand, 0, len(patterns))
	for _, p := range patterns {
		sp, err := qsys.Compile(p)
		if err != nil {
			return nil, err
		}
		spec := command.BuildForPath(sp.Path, req.Term, req.Options, o.config.GrepPath)
		plan = append(plan, PlannedCommand{
			Pattern:      p,
			Level:        sp.Level,
			ResourcePath: sp.Path,
			Command:      spec.String(),
			Env:          o.config.Environment,
		})
	}
	return plan, nil
}

// Execute runs req to completion. Invalid requests fail before anything is
// dispatched; every later failure is recorded per pattern in the result.
// progress, if not nil, is called after each pattern settles.
func (o *Orchestrator) Execute(ctx context.Context, req searchtypes.SearchRequest, progress searchtypes.ProgressFunc) (*searchtypes.SearchResult, error) {
	plan, err := o.Plan(req)
	if err != nil {
		return nil, err
	}

	searchID := req.SearchID
	if searchID == "" {
		searchID = uuid.NewString()
	}

	umbrella, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := o.register(searchID, cancel); err != nil {
		return nil, err
	}
	defer o.unregister(searchID)

	result := &searchtypes.SearchResult{
		SearchID:  searchID,
		Term:      req.Term,
		Options:   req.Options,
		Timestamp: time.Now(),
		Patterns:  len(plan),
	}
	agg := &aggregate{result: result, byPath: make(map[string]*searchtypes.Hit)}

	debug.LogSearch("search %s: %d pattern(s), batches of %d\n", searchID, len(plan), o.config.MaxParallel)

	completed := 0
	for start := 0; start < len(plan); start += o.config.MaxParallel {
		if umbrella.Err() != nil {
			for _, p := range plan[start:] {
				result.Cancelled = append(result.Cancelled, p.Pattern)
			}
			debug.LogSearch("search %s: cancelled, skipped %d pattern(s)\n", searchID, len(plan)-start)
			break
		}

		end := start + o.config.MaxParallel
		if end > len(plan) {
			end = len(plan)
		}

		outcomes := o.runBatch(umbrella, searchID, start, plan[start:end], req.Options)
		for oc := range outcomes {
			o.release(searchID, oc.index)
			agg.add(oc)
			completed++
			if progress != nil {
				progress(completed, len(plan), snapshot(result))
			}
		}
	}

	searchtypes.SortHits(result.Hits)
	debug.LogSearch("search %s: %d hit(s), %d error(s), %d cancelled\n",
		searchID, len(result.Hits), len(result.Errors), len(result.Cancelled))
	return result, nil
}

// runBatch dispatches one batch and returns a channel that yields each
// outcome as it settles and is closed once the whole batch has settled.
func (o *Orchestrator) runBatch(umbrella context.Context, searchID string, offset int, batch []PlannedCommand, opts searchtypes.SearchOptions) <-chan outcome {
	out := make(chan outcome, len(batch))

	var g errgroup.Group
	g.SetLimit(len(batch))
	for i, p := range batch {
		index := offset + i
		patternCtx, cancel := context.WithCancel(umbrella)
		o.track(searchID, index, p.Pattern, cancel)
		g.Go(func() error {
			// Pattern failures never cancel siblings, so the group never sees an error
			out <- o.runPattern(patternCtx, index, p, opts)
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(out)
	}()
	return out
}

type sendResult struct {
	result *remote.Result
	err    error
}

// runPattern sends one command and classifies its outcome. It stops waiting
// as soon as ctx is done, whether or not the executor honours cancellation.
func (o *Orchestrator) runPattern(ctx context.Context, index int, p PlannedCommand, opts searchtypes.SearchOptions) outcome {
	oc := outcome{index: index, pattern: p.Pattern}

	if res, ok := o.config.Cache.Get(p.Command, p.Env); ok {
		debug.LogSearch("cache hit for %s\n", p.Pattern)
		o.finish(&oc, res, opts)
		return oc
	}

	done := make(chan sendResult, 1)
	go func() {
		res, err := o.executor.Send(ctx, p.Command, p.Env)
		done <- sendResult{res, err}
	}()

	var sr sendResult
	select {
	case <-ctx.Done():
		oc.cancelled = true
		return oc
	case sr = <-done:
	}

	if ctx.Err() != nil {
		oc.cancelled = true
		return oc
	}
	if sr.err != nil {
		oc.err = mbrerrors.Wrap(mbrerrors.KindConnectionLost, p.Pattern, sr.err)
		return oc
	}
	if sr.result == nil {
		oc.err = mbrerrors.New(mbrerrors.KindConnectionLost, p.Pattern, "executor returned no result")
		return oc
	}

	o.config.Cache.Put(p.Command, p.Env, sr.result)
	o.finish(&oc, sr.result, opts)
	return oc
}

func (o *Orchestrator) finish(oc *outcome, res *remote.Result, opts searchtypes.SearchOptions) {
	hits, err := classify(oc.pattern, res)
	if err != nil {
		oc.err = err
		return
	}
	oc.hits = o.filter(hits)
	if opts.MaxMatches > 0 {
		for _, h := range oc.hits {
			if h.MatchCount() >= opts.MaxMatches {
				oc.truncated = true
				break
			}
		}
	}
}

// filter drops hits whose path matches an exclude glob. Names on the
// system are case-insensitive, so both sides are compared upper-cased.
func (o *Orchestrator) filter(hits []*searchtypes.Hit) []*searchtypes.Hit {
	if len(o.config.Exclude) == 0 {
		return hits
	}
	kept := hits[:0]
	for _, h := range hits {
		if !o.excluded(h.ResourcePath) {
			kept = append(kept, h)
		}
	}
	return kept
}

func (o *Orchestrator) excluded(path string) bool {
	upper := strings.ToUpper(path)
	for _, pattern := range o.config.Exclude {
		if ok, _ := doublestar.Match(strings.ToUpper(pattern), upper); ok {
			return true
		}
	}
	return false
}

func snapshot(r *searchtypes.SearchResult) *searchtypes.SearchResult {
	c := r.Clone()
	searchtypes.SortHits(c.Hits)
	return c
}

// Cancel cancels every outstanding scope of one search. It reports whether
// the search was running.
func (o *Orchestrator) Cancel(searchID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.searches[searchID]
	if !ok {
		return false
	}
	s.cancel()
	debug.LogSearch("search %s: cancel requested\n", searchID)
	return true
}

// CancelPattern cancels the in-flight executions of one pattern of a search
// and returns how many were cancelled. The rest of the search continues.
func (o *Orchestrator) CancelPattern(searchID, pattern string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.searches[searchID]
	if !ok {
		return 0
	}
	n := 0
	for _, scope := range s.scopes {
		if strings.EqualFold(scope.pattern, strings.TrimSpace(pattern)) {
			scope.cancel()
			n++
		}
	}
	return n
}

// CancelAll cancels every running search and returns how many there were
func (o *Orchestrator) CancelAll() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, s := range o.searches {
		s.cancel()
	}
	return len(o.searches)
}

// Active lists the ids of running searches
func (o *Orchestrator) Active() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids := make([]string, 0, len(o.searches))
	for id := range o.searches {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (o *Orchestrator) register(searchID string, cancel context.CancelFunc) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.searches[searchID]; exists {
		return mbrerrors.Newf(mbrerrors.KindInvalidRequest, "", "search %s is already running", searchID)
	}
	o.searches[searchID] = &activeSearch{cancel: cancel, scopes: make(map[int]*patternScope)}
	return nil
}

func (o *Orchestrator) unregister(searchID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s, ok := o.searches[searchID]; ok {
		for _, scope := range s.scopes {
			scope.cancel()
		}
		delete(o.searches, searchID)
	}
}

func (o *Orchestrator) track(searchID string, index int, pattern string, cancel context.CancelFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s, ok := o.searches[searchID]; ok {
		s.scopes[index] = &patternScope{pattern: pattern, cancel: cancel}
	}
}

func (o *Orchestrator) release(searchID string, index int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s, ok := o.searches[searchID]; ok {
		if scope, ok := s.scopes[index]; ok {
			scope.cancel()
			delete(s.scopes, index)
		}
	}
}
