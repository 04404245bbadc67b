package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blarApp/blargraph/internal/batchproc"
	"github.com/blarApp/blargraph/internal/graphmodel"
	"github.com/blarApp/blargraph/internal/langregistry"
	"github.com/blarApp/blargraph/internal/llmclient"
	"github.com/blarApp/blargraph/internal/logging"
	"github.com/blarApp/blargraph/internal/lsp"
	"github.com/blarApp/blargraph/internal/overlay"
)

var (
	processRepoPath    string
	processEntityID    string
	processRepoID      string
	processConcurrency int
	processWorkers     int
	processWorkflow    bool
	processDocs        bool
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run the bottom-up batch processor over a repository's graph",
	Long: `process drives the Bottom-Up Batch Processor (spec §4.7) over a
repository's code graph: documentation summarization (--docs, the
default) and workflow discovery (--workflow), persisting per-node
processing status to the graph store as it goes. Every run resets the
status of all code nodes to pending first and processes the whole scope
again; it does not resume an interrupted run.`,
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVar(&processRepoPath, "repo-path", ".", "repository root (must match the root used by build)")
	processCmd.Flags().StringVar(&processEntityID, "entity-id", "default", "multi-tenant entity id")
	processCmd.Flags().StringVar(&processRepoID, "repo-id", "", "repository id (required)")
	processCmd.Flags().IntVar(&processConcurrency, "concurrency", 8, "max simultaneous in-flight LSP requests")
	processCmd.Flags().IntVar(&processWorkers, "workers", 0, "batch processor worker pool size (defaults to the config's workers.pool_size)")
	processCmd.Flags().BoolVar(&processDocs, "docs", true, "run the documentation-summarization task")
	processCmd.Flags().BoolVar(&processWorkflow, "workflow", false, "run the workflow-discovery task")
	processCmd.MarkFlagRequired("repo-id")
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	env := graphmodel.Environment{
		EntityID:       processEntityID,
		RepoID:         processRepoID,
		RootPath:       processRepoPath,
		EnvironmentTag: "main",
	}

	registry := langregistry.NewRegistry()

	logging.Info("process: reconstructing graph", "path", processRepoPath)
	graph, _, err := parseRepository(registry, env, processRepoPath)
	if err != nil {
		return err
	}

	coordinator, err := lsp.NewCoordinator(ctx, fileURI(processRepoPath), lspCommands(cfg), cfg.LSP.StartupTimeout)
	if err != nil {
		return fmt.Errorf("failed to start LSP coordinator: %w", err)
	}
	defer coordinator.Shutdown(ctx)

	if err := resolveReferences(ctx, registry, coordinator, graph, processConcurrency); err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	if err := store.InitializeProcessing(ctx, env.EntityID, env.RepoID); err != nil {
		return fmt.Errorf("failed to initialize processing status: %w", err)
	}

	workers := processWorkers
	if workers <= 0 {
		workers = cfg.Workers.PoolSize
	}
	processor := batchproc.NewWithSink(workers, store, env.EntityID, env.RepoID)

	scope := graph.NodesByKind(graphmodel.KindFolder)
	scope = append(scope, graph.NodesByKind(graphmodel.KindFile)...)
	scope = append(scope, graph.NodesByKind(graphmodel.KindClass)...)
	scope = append(scope, graph.NodesByKind(graphmodel.KindFunction)...)

	if processDocs {
		llm := llmclient.New()
		defer llm.Close()
		task := overlay.NewDocumentationTask(graph, env, llm)
		_, result := processor.Run(ctx, graph, scope, task)
		logging.Info("process: documentation task complete", "completed", result.Completed, "cycle_members", len(result.CycleMembers), "errors", len(result.Errors))
		pruned := overlay.PruneOrphanDocumentation(graph)
		logging.Info("process: pruned orphan documentation nodes", "count", pruned)
	}

	if processWorkflow {
		task := overlay.NewWorkflowTask(graph, env, overlay.DefaultWorkflowDepth)
		_, result := processor.Run(ctx, graph, scope, task)
		logging.Info("process: workflow task complete", "completed", result.Completed, "cycle_members", len(result.CycleMembers), "errors", len(result.Errors))
	}

	if err := store.CleanupProcessing(ctx, env.EntityID, env.RepoID); err != nil {
		logging.Warn("process: cleanup failed (non-fatal)", "error", err)
	}

	if err := persistGraph(ctx, cfg, store, graph); err != nil {
		return err
	}

	fmt.Printf("process complete: %d nodes in scope\n", len(scope))
	return nil
}
