package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/config"
	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/errs"
	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/kv"
	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/stash"
)

var serveDescriptorPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Open a depot's database and block, reloading on descriptor changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		db, err := kv.OpenSQLiteStore(config.GetString("dbPath"))
		if err != nil {
			return err
		}
		defer db.Close()

		artifacts := newArtifactStore(db)
		stashes := newStashes(db, artifacts)
		_ = newEngine(db, artifacts, stashes)
		logger.Info("depot opened", "dbPath", config.GetString("dbPath"), "bindAddr", config.GetString("bindAddr"))

		var watcher *ConfigWatcher
		if serveDescriptorPath != "" {
			watcher, err = NewConfigWatcher(serveDescriptorPath, func() {
				d, err := config.LoadDescriptor(serveDescriptorPath)
				if err != nil {
					logger.Error("reloading descriptor failed", "path", serveDescriptorPath, "error", err)
					return
				}
				seedNewProjects(ctx, stashes, d)
			}, logger)
			if err != nil {
				return err
			}
			watcher.Start(ctx)
			defer watcher.Close()
		}

		<-ctx.Done()
		logger.Info("shutting down")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveDescriptorPath, "descriptor", "", "path to a polytope.toml bootstrap descriptor to watch for changes")
}

// seedNewProjects creates any project named in d that doesn't already
// exist, so editing the descriptor on a running depot can add projects
// without a restart.
func seedNewProjects(ctx context.Context, stashes *stash.Stashes, d *config.Descriptor) {
	for _, p := range d.Projects {
		if _, err := stashes.Projects.GetByName(ctx, p.Name); err == nil {
			continue
		} else if !errs.Is(err, errs.NotFound) {
			logger.Error("checking project", "name", p.Name, "error", err)
			continue
		}
		if _, err := stashes.CreateProject(ctx, p.Name, config.GetString("rootUser"), p.Description); err != nil {
			logger.Error("seeding project from reloaded descriptor", "name", p.Name, "error", err)
			continue
		}
		logger.Info("seeded project from reloaded descriptor", "name", p.Name)
	}
}
