package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Leganyst/therapy-booking/internal/db"
	"github.com/Leganyst/therapy-booking/internal/service"
)

var (
	materializeProvider string
	materializeAll      bool
	materializeHorizon  int
)

var materializeCmd = &cobra.Command{
	Use:   "materialize",
	Short: "Regenerate unbooked slots from schedule templates",
	Long: `Deletes unbooked slots in the horizon and regenerates them from the
provider's daily template. Booked and withdrawn slots are kept.

Examples:
  therapy-booking materialize --provider <uuid>
  therapy-booking materialize --all --horizon 90`,
	RunE: runMaterialize,
}

func init() {
	rootCmd.AddCommand(materializeCmd)

	materializeCmd.Flags().StringVar(&materializeProvider, "provider", "", "Provider id to materialize")
	materializeCmd.Flags().BoolVar(&materializeAll, "all", false, "Materialize every provider with a template")
	materializeCmd.Flags().IntVar(&materializeHorizon, "horizon", 0, "Days ahead to generate (default scheduling.horizon_days)")
	materializeCmd.MarkFlagsMutuallyExclusive("provider", "all")
	materializeCmd.MarkFlagsOneRequired("provider", "all")
}

func runMaterialize(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	gormDB, err := openDatabase()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(gormDB) }()

	horizon := materializeHorizon
	if horizon <= 0 {
		horizon = cfg.Scheduling.HorizonDays
	}
	m := service.NewMaterializer(gormDB, logger, service.MaterializerOptions{HorizonDays: horizon})
	ctx := cmd.Context()

	if materializeAll {
		report, err := m.MaterializeAll(ctx, horizon)
		logger.Info().
			Int("providers", report.Providers).
			Int("failed", report.Failed).
			Int64("inserted", report.Inserted).
			Msg("materialization finished")
		return err
	}

	providerID, err := uuid.Parse(materializeProvider)
	if err != nil {
		return errors.New("--provider must be a uuid")
	}
	n, err := m.Materialize(ctx, providerID, horizon)
	if err != nil {
		return fmt.Errorf("materialize %s: %w", providerID, err)
	}
	logger.Info().Str("provider_id", providerID.String()).Int64("inserted", n).Msg("materialization finished")
	return nil
}
