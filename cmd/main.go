package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"gorm.io/gorm"

	"github.com/Leganyst/therapy-booking/internal/config"
	"github.com/Leganyst/therapy-booking/internal/db"
	"github.com/Leganyst/therapy-booking/internal/logging"
	"github.com/Leganyst/therapy-booking/internal/model"
	"github.com/Leganyst/therapy-booking/internal/notify"
	"github.com/Leganyst/therapy-booking/internal/repository"
	"github.com/Leganyst/therapy-booking/internal/server"
	"github.com/Leganyst/therapy-booking/internal/service"
	"github.com/Leganyst/therapy-booking/internal/telemetry"
	"github.com/Leganyst/therapy-booking/internal/worker"
)

var (
	logger zerolog.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "therapy-booking",
	Short:         "Therapy session scheduling and booking service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveAutoMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC API, the ops endpoints and the materialization worker",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&serveAutoMigrate, "auto-migrate", true, "Run schema migrations before serving")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger = logging.Setup(cfg.Environment)
	return nil
}

func openDatabase() (*gorm.DB, error) {
	gormDB, err := db.NewGormDB(&cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("init db: %w", err)
	}
	return gormDB, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	gormDB, err := openDatabase()
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(gormDB); err != nil {
			logger.Error().Err(err).Msg("close database")
		}
	}()

	if serveAutoMigrate {
		if err := model.AutoMigrate(gormDB); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, closeSink, err := notify.NewSink(ctx, cfg.Notify, logger)
	if err != nil {
		return fmt.Errorf("init notification sink: %w", err)
	}
	dispatcher := notify.NewDispatcher(sink, logger, notify.DispatcherOptions{
		RatePerSecond: cfg.Notify.RatePerSecond,
		Burst:         cfg.Notify.Burst,
		SendTimeout:   cfg.Notify.SendTimeout,
	})
	defer func() {
		dispatcher.Wait()
		if err := closeSink(); err != nil {
			logger.Error().Err(err).Msg("close notification sink")
		}
	}()

	materializer := service.NewMaterializer(gormDB, logger, service.MaterializerOptions{
		HorizonDays: cfg.Scheduling.HorizonDays,
	})
	bookings := service.NewBookingService(gormDB, dispatcher, repository.NewGormConsentRepository(gormDB), logger, service.BookingOptions{
		BookingWindowDays: cfg.Scheduling.BookingWindowDays,
	})
	leaves := service.NewLeaveService(gormDB, dispatcher, logger, service.LeaveOptions{
		ApprovalTimeout: cfg.Leave.ApprovalTimeout,
	})

	grpcServer := server.NewGRPCServer(logger)
	health := server.NewSchedulingServer(materializer, bookings, leaves, repository.NewGormProviderRepository(gormDB), logger).
		Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.GRPC.Addr, err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return fmt.Errorf("sql db: %w", err)
	}
	opsServer := &http.Server{
		Addr:              cfg.Ops.Addr,
		Handler:           telemetry.NewRouter(sqlDB),
		ReadHeaderTimeout: 5 * time.Second,
	}

	loop := worker.NewMaterializeLoop(materializer, worker.MaterializeConfig{
		Interval:    cfg.Scheduling.MaterializeInterval,
		HorizonDays: cfg.Scheduling.HorizonDays,
		RunOnStart:  true,
	}, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", cfg.GRPC.Addr).Msg("gRPC server listening")
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info().Str("addr", cfg.Ops.Addr).Msg("ops server listening")
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ops serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		loop.Start(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")

		health.Shutdown()
		grpcServer.GracefulStop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := opsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("ops server shutdown")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Msg("stopped")
	return nil
}
