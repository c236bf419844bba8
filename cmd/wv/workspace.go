package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/wavebuild/wavebuild/internal/analyzer"
	"github.com/wavebuild/wavebuild/internal/artifact"
	"github.com/wavebuild/wavebuild/internal/cache"
	"github.com/wavebuild/wavebuild/internal/config"
	"github.com/wavebuild/wavebuild/internal/events"
	"github.com/wavebuild/wavebuild/internal/graph"
	"github.com/wavebuild/wavebuild/internal/handler/mockhandler"
	"github.com/wavebuild/wavebuild/internal/ignore"
	"github.com/wavebuild/wavebuild/internal/logx"
	"github.com/wavebuild/wavebuild/internal/metrics"
	"github.com/wavebuild/wavebuild/internal/types"
	"github.com/wavebuild/wavebuild/internal/wverrors"
	"github.com/wavebuild/wavebuild/pkg/handlerapi"
)

// workspace bundles everything a build-shaped command (build/test/graph/
// query/resume) needs after config discovery, graph assembly and storage
// are wired up.
type workspace struct {
	root    string
	ws      *config.Workspace
	graph   *graph.Graph
	store   *cache.Store
	arts    *artifact.Store
	metrics *metrics.Registry
	events  *events.Publisher
}

// loadWorkspace discovers the workspace at the --root flag, builds the
// target graph from declared dependencies (and, when withAnalysis is set,
// augments it with import-discovered edges), and opens the on-disk cache
// and artifact stores. Callers that only need the graph shape (query,
// graph) can pass withAnalysis=false to skip the source scan.
func loadWorkspace(c *cli.Context, withAnalysis bool) (*workspace, error) {
	root, err := workspaceRoot(c)
	if err != nil {
		return nil, err
	}

	homeDir, _ := os.UserHomeDir()
	ws, targets, err := config.Load(root, homeDir)
	if err != nil {
		return nil, wverrors.Wrap(wverrors.KindConfig, "load workspace", err)
	}

	g := graph.New()
	for _, t := range targets {
		if err := g.AddTarget(t); err != nil {
			return nil, err
		}
	}
	for _, t := range targets {
		for _, dep := range t.DeclaredDeps {
			if err := g.AddEdge(t.ID, dep); err != nil {
				return nil, err
			}
		}
	}

	if withAnalysis {
		discoverImportEdges(c.Context, root, ws, g, targets)
	}

	var reg prometheus.Registerer = prometheus.NewRegistry()
	store := cache.New(cacheDir(root), resolveCacheLimits(ws), reg)
	if err := store.Load(); err != nil {
		return nil, wverrors.Wrap(wverrors.KindCache, "cache unreadable", err)
	}

	arts := artifact.New(filepath.Join(cacheDir(root), "artifacts"), artifact.DefaultLimits())
	if err := arts.Load(); err != nil {
		return nil, wverrors.Wrap(wverrors.KindCache, "artifact index unreadable", err)
	}

	metricsReg := metrics.NewRegistry(reg)
	pub := events.NewPublisher()

	return &workspace{
		root:    root,
		ws:      ws,
		graph:   g,
		store:   store,
		arts:    arts,
		metrics: metricsReg,
		events:  pub,
	}, nil
}

func resolveCacheLimits(ws *config.Workspace) cache.Limits {
	limits := cache.DefaultLimits()
	if ws.Cache.MaxSize > 0 {
		limits.MaxSize = ws.Cache.MaxSize
	}
	if ws.Cache.MaxEntries > 0 {
		limits.MaxEntries = ws.Cache.MaxEntries
	}
	if ws.Cache.MaxAgeDays > 0 {
		limits.MaxAge = time.Duration(ws.Cache.MaxAgeDays) * 24 * time.Hour
	}
	return limits
}

func resolveWorkers(c *cli.Context, ws *config.Workspace) int {
	if w := c.Int("workers"); w > 0 {
		return w
	}
	if ws.Parallelism > 0 {
		return ws.Parallelism
	}
	return 0 // executor.Options.withDefaults picks a default
}

// registerHandlers registers a single mockhandler.Handler for every
// (language, kind) pair present in the graph. The real per-language
// handler plumbing (invoking an actual compiler/test runner) is out of
// scope; mockhandler is the one concrete handlerapi.Handler this module
// ships, exercising the full Plan/NeedsRebuild/Build/Clean dispatch path
// the way a real handler plugin would.
func registerHandlers(e handlerRegisterer, g *graph.Graph) {
	h := mockhandler.New()
	seen := make(map[[2]string]bool)
	for _, id := range g.AllIDs() {
		t, ok := g.Target(id)
		if !ok {
			continue
		}
		key := [2]string{string(t.Language), string(t.Kind)}
		if seen[key] {
			continue
		}
		seen[key] = true
		e.RegisterHandler(t.Language, t.Kind, h)
	}
}

// handlerRegisterer is the slice of *executor.Executor this package
// depends on, kept narrow so registerHandlers is easy to exercise without
// constructing a full Executor.
type handlerRegisterer interface {
	RegisterHandler(lang types.Language, kind types.Kind, h handlerapi.Handler)
}

// discoverImportEdges runs the analyzer scan+resolve pass and adds any
// newly-discovered, not-already-declared edge to g. Extraction and
// resolution failures are logged and skipped rather than failing the
// command: declared_deps alone are always sufficient to build, so import
// discovery is a best-effort enrichment, not a precondition.
func discoverImportEdges(ctx context.Context, root string, ws *config.Workspace, g *graph.Graph, targets []types.Target) {
	reg := analyzer.NewRegistry()
	matcher := ignore.New(root, toIgnorePatterns(ws.IgnorePatterns))
	scanner := analyzer.NewScanner(reg, ignoreAdapter{root: root, m: matcher}, 0)

	files, err := scanner.Scan(ctx, root)
	if err != nil {
		logx.Warnf("import scan: %v", err)
		return
	}

	sourceToTarget := make(map[string]types.TargetID)
	resolver := analyzer.NewResolver()
	for _, t := range targets {
		for _, src := range t.Sources {
			sourceToTarget[src] = t.ID
		}
		resolver.IndexTarget(t.ID, t.Sources, []string{t.ID.PackagePath()})
	}

	for _, f := range files {
		owner, ok := sourceToTarget[f.Path]
		if !ok {
			continue // file not covered by any declared target's sources
		}
		content, err := os.ReadFile(f.Path)
		if err != nil {
			logx.Warnf("read %s: %v", f.Path, err)
			continue
		}
		imports, err := analyzer.ExtractorFor(f.Spec).Extract(f.Path, content)
		if err != nil {
			logx.Warnf("extract %s: %v", f.Path, err)
			continue
		}
		for _, imp := range imports {
			dep, ok, diag := resolver.Resolve(owner, f.Path, imp)
			if !ok {
				if diag != nil && diag.Suggestion != "" {
					logx.Debugf("unresolved import %q in %s (did you mean %s?)", imp.Raw, f.Path, diag.Suggestion)
				}
				continue
			}
			if dep == owner || hasDep(g, owner, dep) {
				continue
			}
			if err := g.AddEdge(owner, dep); err != nil {
				logx.Warnf("discovered edge %s -> %s: %v", owner, dep, err)
			}
		}
	}
}

// toIgnorePatterns mirrors internal/config's own `!negation`-prefix
// convention for turning raw workspace-file strings into ignore.Pattern
// values (that helper is unexported, so the CLI layer reimplements the
// same three lines rather than reaching into config's internals).
func toIgnorePatterns(raw []string) []ignore.Pattern {
	out := make([]ignore.Pattern, 0, len(raw))
	for _, r := range raw {
		if strings.HasPrefix(r, "!") {
			out = append(out, ignore.Pattern{Raw: strings.TrimPrefix(r, "!"), Negate: true})
			continue
		}
		out = append(out, ignore.Pattern{Raw: r})
	}
	return out
}

func hasDep(g *graph.Graph, from, to types.TargetID) bool {
	for _, d := range g.Deps(from) {
		if d == to {
			return true
		}
	}
	return false
}

// ignoreAdapter bridges internal/ignore's absolute-path Matcher to
// analyzer.IgnoreMatcher's workspace-relative contract.
type ignoreAdapter struct {
	root string
	m    *ignore.Matcher
}

func (a ignoreAdapter) Ignored(relPath string, _ bool) bool {
	return a.m.ShouldIgnore(filepath.Join(a.root, relPath))
}
