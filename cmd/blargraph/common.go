package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/blarApp/blargraph/internal/config"
	"github.com/blarApp/blargraph/internal/fileiter"
	"github.com/blarApp/blargraph/internal/graphmodel"
	"github.com/blarApp/blargraph/internal/graphstore"
	"github.com/blarApp/blargraph/internal/hierarchy"
	"github.com/blarApp/blargraph/internal/langregistry"
	"github.com/blarApp/blargraph/internal/logging"
	"github.com/blarApp/blargraph/internal/lsp"
	"github.com/blarApp/blargraph/internal/resolver"
	"github.com/blarApp/blargraph/internal/staging"
)

// loadConfig reads config.yaml (via --config or the default search path),
// then initializes the global logger from it, matching every subcommand's
// shared startup sequence.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logCfg := logging.DefaultConfig(cfg.Mode == "local")
	if err := logging.Initialize(logCfg); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	return cfg, nil
}

// openStore connects to the configured Neo4j instance.
func openStore(ctx context.Context, cfg *config.Config) (*graphstore.Neo4jStore, error) {
	store, err := graphstore.NewNeo4jStore(ctx, cfg.GraphStore.URI, cfg.GraphStore.Username, cfg.GraphStore.Password, cfg.GraphStore.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to graph store: %w", err)
	}
	return store.WithBatchSizes(graphstore.BatchSizes{
		NodeBatchSize: cfg.GraphStore.NodeBatchSize,
		EdgeBatchSize: cfg.GraphStore.EdgeBatchSize,
	}), nil
}

// lspCommands translates the configured per-language server launch commands
// into the Coordinator's input shape.
func lspCommands(cfg *config.Config) []lsp.ServerCommand {
	commands := make([]lsp.ServerCommand, 0, len(cfg.LSP.Servers))
	for lang, sc := range cfg.LSP.Servers {
		commands = append(commands, lsp.ServerCommand{Language: lang, Command: sc.Command, Args: sc.Args})
	}
	return commands
}

// parseRepository runs the Hierarchy Builder over every file under
// rootPath, returning the populated graph alongside the parsed tree/code
// maps the Reference Resolver needs — the shared first half of build,
// update, and diff, each of which needs a fully-populated in-memory arena
// before it can do anything environment-specific.
func parseRepository(registry *langregistry.Registry, env graphmodel.Environment, rootPath string) (*graphmodel.Graph, *hierarchy.BuildResult, error) {
	it, err := fileiter.New(rootPath, registry)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to construct file iterator: %w", err)
	}

	graph := graphmodel.NewGraph()
	builder := hierarchy.New(registry, env)
	result := builder.Build(graph, it.Walk())
	for _, perr := range result.ParseErrors {
		logging.Warn("build: parse error", "error", perr)
	}
	for _, eerr := range result.ExtractErrors {
		logging.Warn("build: extraction error", "error", eerr)
	}
	return graph, result, nil
}

// resolveReferences re-parses every File node's source (the Hierarchy
// Builder already closed its own trees), opens each file against its
// language's LSP server, and runs the Reference Resolver over the result.
func resolveReferences(ctx context.Context, registry *langregistry.Registry, coordinator *lsp.Coordinator, graph *graphmodel.Graph, concurrency int) error {
	var paths []string
	for _, n := range graph.NodesByKind(graphmodel.KindFile) {
		if n.Language == "" {
			continue
		}
		paths = append(paths, n.Path)
	}
	return resolvePaths(ctx, registry, coordinator, graph, concurrency, paths)
}

// resolvePaths runs the Reference Resolver restricted to exactly paths,
// reusing the same "parse, resolve" sequence resolveReferences runs over
// the whole repository (Resolve itself issues didOpen for every file before
// resolving, spec §4.4) — the Diff Engine's own Run doc comment notes its
// rebuilt files' resolution pass is the caller's job (spec §4.5 Phase C),
// and this is that pass scoped to just the files it rebuilt.
func resolvePaths(ctx context.Context, registry *langregistry.Registry, coordinator *lsp.Coordinator, graph *graphmodel.Graph, concurrency int, paths []string) error {
	trees, code, err := resolver.ParseTrees(registry, paths)
	if err != nil {
		return fmt.Errorf("failed to parse trees for resolution: %w", err)
	}
	defer func() {
		for _, tree := range trees {
			tree.Close()
		}
	}()

	resolve := resolver.New(registry, coordinator, concurrency)
	resolve.Resolve(ctx, graph, trees, code)
	return nil
}

// persistGraph buffers every node and edge currently in graph into the
// local staging store and flushes it to dst in batches, rather than
// upserting node-by-node against the graph database directly (spec §2.2
// "Local staging / cache").
func persistGraph(ctx context.Context, cfg *config.Config, dst graphstore.Store, graph *graphmodel.Graph) error {
	stage, err := openStaging(cfg)
	if err != nil {
		return err
	}
	defer stage.Close()

	for _, n := range graph.Nodes() {
		if err := stage.BufferNode(n); err != nil {
			return fmt.Errorf("failed to buffer node %s: %w", n.ID, err)
		}
	}
	for _, e := range graph.Edges() {
		if err := stage.BufferEdge(e); err != nil {
			return fmt.Errorf("failed to buffer edge %s->%s: %w", e.FromID, e.ToID, err)
		}
	}

	counts, err := stage.Flush(ctx, dst)
	if err != nil {
		return fmt.Errorf("failed to flush staging buffer: %w", err)
	}
	logging.Info("persisted graph", "nodes", counts.Nodes, "edges", counts.Edges)
	return nil
}

// openStaging opens the local buffer store at the configured path.
func openStaging(cfg *config.Config) (*staging.Store, error) {
	stage, err := staging.Open(cfg.Staging.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open staging buffer: %w", err)
	}
	return stage, nil
}

func fileURI(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return "file://" + filepath.ToSlash(abs)
}
