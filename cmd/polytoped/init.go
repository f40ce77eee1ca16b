package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/config"
	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/kv"
	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/perm"
	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/user"
)

var descriptorPath string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a fresh depot's database, root user, and seed projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		db, err := kv.OpenSQLiteStore(config.GetString("dbPath"))
		if err != nil {
			return err
		}
		defer db.Close()

		users := user.NewStore(db, config.GetString("defaultHasher"))
		rootUser := config.GetString("rootUser")
		rootEmail := config.GetString("rootEmail")
		rootPassword := config.GetString("rootPassword")
		if rootPassword == "" {
			return fmt.Errorf("rootPassword is not set (set POLY_ROOTPASSWORD or rootPassword in config.toml)")
		}

		root, err := users.Create(ctx, rootUser, rootEmail, rootPassword)
		if err != nil {
			return fmt.Errorf("creating root user: %w", err)
		}
		if err := users.Grant(ctx, root, perm.Action{ScopeType: perm.ScopeGlobal, ScopeName: "*", Level: perm.Admin}); err != nil {
			return fmt.Errorf("granting root user global admin: %w", err)
		}
		logger.Info("created root user", "username", root.Username, "dbPath", config.GetString("dbPath"))

		if descriptorPath != "" {
			if err := seedFromDescriptor(ctx, db, descriptorPath); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&descriptorPath, "descriptor", "", "path to a polytope.toml bootstrap descriptor naming seed projects")
}

func seedFromDescriptor(ctx context.Context, db kv.Store, path string) error {
	d, err := config.LoadDescriptor(path)
	if err != nil {
		return err
	}
	artifacts := newArtifactStore(db)
	stashes := newStashes(db, artifacts)
	for _, p := range d.Projects {
		if _, err := stashes.CreateProject(ctx, p.Name, config.GetString("rootUser"), p.Description); err != nil {
			return fmt.Errorf("seeding project %q: %w", p.Name, err)
		}
		logger.Info("seeded project", "name", p.Name)
	}
	return nil
}
