// Package main implements enginectl, the admin CLI for the mirror's sync
// and cleanup operations (spec.md §6 "Mirror admin").
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/weavehub/weave/common"
	"github.com/weavehub/weave/config"
	"github.com/weavehub/weave/db"
	"github.com/weavehub/weave/mirror"
)

var syncLimit int

var rootCmd = &cobra.Command{
	Use:   "enginectl",
	Short: "Administer the assistant/graph mirror",
	Long: `enginectl drives the mirror's sync and cleanup operations directly
against the database and upstream engine, for use outside the HTTP API
(cron jobs, one-off backfills, incident response).`,
}

var syncIncrementalCmd = &cobra.Command{
	Use:   "sync-incremental",
	Short: "Sync assistants changed since the last run",
	RunE: withMirror(func(ctx context.Context, svc *mirror.Service, cmd *cobra.Command, args []string) error {
		stats, err := svc.SyncIncremental(ctx, syncLimit)
		if err != nil {
			return err
		}
		printStats(stats)
		return nil
	}),
}

var syncFullCmd = &cobra.Command{
	Use:   "sync-full",
	Short: "Sync every assistant from the upstream engine",
	RunE: withMirror(func(ctx context.Context, svc *mirror.Service, cmd *cobra.Command, args []string) error {
		stats, err := svc.SyncFull(ctx, syncLimit)
		if err != nil {
			return err
		}
		printStats(stats)
		return nil
	}),
}

var syncAssistantCmd = &cobra.Command{
	Use:   "sync-assistant [assistant-id]",
	Short: "Sync a single assistant by id",
	Args:  cobra.ExactArgs(1),
	RunE: withMirror(func(ctx context.Context, svc *mirror.Service, cmd *cobra.Command, args []string) error {
		stats, err := svc.SyncAssistant(ctx, args[0])
		if err != nil {
			return err
		}
		printStats(stats)
		return nil
	}),
}

var syncGraphCmd = &cobra.Command{
	Use:   "sync-graph [graph-id]",
	Short: "Sync every assistant belonging to a graph",
	Args:  cobra.ExactArgs(1),
	RunE: withMirror(func(ctx context.Context, svc *mirror.Service, cmd *cobra.Command, args []string) error {
		stats, err := svc.SyncGraph(ctx, args[0], syncLimit)
		if err != nil {
			return err
		}
		printStats(stats)
		return nil
	}),
}

var cleanupGraceDays int

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove mirror rows untouched since a grace period elapsed",
	RunE: withMirror(func(ctx context.Context, svc *mirror.Service, cmd *cobra.Command, args []string) error {
		result, err := svc.CleanupStaleMirrors(ctx, cleanupGraceDays)
		if err != nil {
			return err
		}
		fmt.Printf("removed %d graphs, %d assistants, %d schemas\n", result.GraphsDeleted, result.AssistantsDeleted, result.SchemasDeleted)
		return nil
	}),
}

var cacheStateCmd = &cobra.Command{
	Use:   "cache-state",
	Short: "Print the current cache-state counters",
	RunE: withMirror(func(ctx context.Context, svc *mirror.Service, cmd *cobra.Command, args []string) error {
		state, err := svc.GetCacheState(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("graphs_version=%d assistants_version=%d schemas_version=%d threads_version=%d last_synced_at=%s\n",
			state.GraphsVersion, state.AssistantsVersion, state.SchemasVersion, state.ThreadsVersion, state.UpdatedAt)
		return nil
	}),
}

func printStats(stats mirror.SyncStats) {
	fmt.Printf("new=%d updated=%d unchanged=%d schema_updates=%d errors=%d\n",
		stats.New, stats.Updated, stats.Unchanged, stats.SchemaUpdates, len(stats.Errors))
	for _, e := range stats.Errors {
		fmt.Fprintln(os.Stderr, "error:", e)
	}
}

// withMirror wraps a command body with the mirror service construction a
// direct-to-database admin operation needs, without standing up the rest
// of the HTTP server's dependency graph.
func withMirror(fn func(ctx context.Context, svc *mirror.Service, cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.Load(ctx)
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}

		gormDB, err := db.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("opening postgres: %w", err)
		}

		schemas, err := db.NewCouchDBService(db.CouchDBConfig{
			URL:             cfg.CouchDBURL,
			Database:        "assistant_schemas",
			CreateIfMissing: true,
		})
		if err != nil {
			return fmt.Errorf("connecting to couchdb: %w", err)
		}
		defer schemas.Close()

		var graphRepo mirror.GraphMembershipStore
		if cfg.Neo4jURL != "" {
			repo, err := mirror.NewNeo4jGraphRepository(ctx, cfg.Neo4jURL, cfg.Neo4jUser, cfg.Neo4jPassword)
			if err == nil {
				graphRepo = repo
				defer repo.Close(ctx)
			}
		}

		logger := common.ServiceLogger("enginectl", "dev")
		engineClient := mirror.NewHTTPEngineClient(cfg.UpstreamEngineURL, cfg.UpstreamEngineToken)
		svc := mirror.NewService(gormDB, engineClient, schemas, graphRepo, logger)

		return fn(ctx, svc, cmd, args)
	}
}

func init() {
	rootCmd.PersistentFlags().IntVar(&syncLimit, "limit", 200, "maximum number of assistants to process")
	cleanupCmd.Flags().IntVar(&cleanupGraceDays, "grace-days", 30, "remove mirror rows untouched for this many days")

	rootCmd.AddCommand(syncIncrementalCmd, syncFullCmd, syncAssistantCmd, syncGraphCmd, cleanupCmd, cacheStateCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
