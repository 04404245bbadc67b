package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blarApp/blargraph/internal/graphmodel"
	"github.com/blarApp/blargraph/internal/langregistry"
	"github.com/blarApp/blargraph/internal/logging"
	"github.com/blarApp/blargraph/internal/lsp"
	"github.com/blarApp/blargraph/internal/resolver"
	"github.com/blarApp/blargraph/internal/updater"
)

var (
	updateRepoPath    string
	updateEntityID    string
	updateRepoID      string
	updateConcurrency int
)

var updateCmd = &cobra.Command{
	Use:   "update <path> [path...]",
	Short: "Rebuild the graph for a set of changed files",
	Long: `update runs the Updater's four-step protocol (spec §4.6) for the given
paths: detach-delete each path's existing nodes in the graph store,
rebuild them, re-resolve the rebuilt files plus their direct callers, and
invalidate any stale documentation overlay, cascading to further waves of
callers up to the depth guard.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpdate,
}

func init() {
	updateCmd.Flags().StringVar(&updateRepoPath, "repo-path", ".", "repository root (must match the root used by build)")
	updateCmd.Flags().StringVar(&updateEntityID, "entity-id", "default", "multi-tenant entity id")
	updateCmd.Flags().StringVar(&updateRepoID, "repo-id", "", "repository id (required)")
	updateCmd.Flags().IntVar(&updateConcurrency, "concurrency", 8, "max simultaneous in-flight LSP requests")
	updateCmd.MarkFlagRequired("repo-id")
}

func runUpdate(cmd *cobra.Command, paths []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	env := graphmodel.Environment{
		EntityID:       updateEntityID,
		RepoID:         updateRepoID,
		RootPath:       updateRepoPath,
		EnvironmentTag: "main",
	}

	registry := langregistry.NewRegistry()

	// The Updater needs a live arena already holding every node the
	// environment tracks, so every caller-discovery lookup has something to
	// search (spec §4.6) — there is no separate graph-loader component, so
	// this reconstructs that arena the same way build does.
	logging.Info("update: reconstructing in-memory graph", "path", updateRepoPath)
	graph, _, err := parseRepository(registry, env, updateRepoPath)
	if err != nil {
		return err
	}

	coordinator, err := lsp.NewCoordinator(ctx, fileURI(updateRepoPath), lspCommands(cfg), cfg.LSP.StartupTimeout)
	if err != nil {
		return fmt.Errorf("failed to start LSP coordinator: %w", err)
	}
	defer coordinator.Shutdown(ctx)

	if err := resolveReferences(ctx, registry, coordinator, graph, updateConcurrency); err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	resolve := resolver.New(registry, coordinator, updateConcurrency)
	u := updater.New(registry, store, env)
	result, err := u.Update(ctx, graph, resolve, paths)
	if err != nil {
		return fmt.Errorf("update failed: %w", err)
	}

	// Upserts are idempotent MERGEs (spec §2.2), so re-flushing the whole
	// current graph after an update is safe even though the Updater only
	// actually changed a subset of it.
	if err := persistGraph(ctx, cfg, store, graph); err != nil {
		return err
	}

	fmt.Printf("update complete: %d paths rebuilt, %d nodes invalidated, %d cascade waves\n",
		len(result.RebuiltPaths), len(result.InvalidatedNodes), result.CascadeWaves)
	return nil
}
