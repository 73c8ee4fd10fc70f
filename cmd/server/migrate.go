package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"smpd/internal/platform/config"
	"smpd/internal/platform/logger"
	"smpd/internal/platform/postgres"
	"smpd/internal/storage"
	sqlstore "smpd/internal/storage/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the SQL schema migrations and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		kind, err := storage.ParseKind(cfg.Storage.Kind)
		if err != nil {
			return err
		}
		if kind != storage.KindSQL {
			return fmt.Errorf("migrate needs the sql backend, configured kind is %q", kind)
		}
		log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return err
		}
		db, err := postgres.Open(cmd.Context(), cfg.Storage.Postgres)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := sqlstore.Migrate(db); err != nil {
			return err
		}
		log.Info("schema up to date")
		return nil
	},
}
