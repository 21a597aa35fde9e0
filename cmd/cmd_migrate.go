package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Leganyst/therapy-booking/internal/db"
	"github.com/Leganyst/therapy-booking/internal/model"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	gormDB, err := openDatabase()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(gormDB) }()

	if err := model.AutoMigrate(gormDB); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	logger.Info().Str("backend", string(cfg.DB.Backend)).Msg("schema migrated")
	return nil
}
