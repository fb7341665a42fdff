package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/veriledger/veriledger/internal/config"
	"github.com/veriledger/veriledger/internal/db"
	"github.com/veriledger/veriledger/internal/httpapi"
	"github.com/veriledger/veriledger/internal/veriledger/service"
	sqlitestore "github.com/veriledger/veriledger/internal/veriledger/store/sqlite"
)

func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "veriledger-server ", log.LstdFlags|log.LUTC)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		logger.Fatalf("open db: %v", err)
	}
	defer conn.Close()

	if cfg.Env == "dev" {
		if err := db.SeedDev(ctx, conn); err != nil {
			logger.Printf("seed dev data: %v", err)
		}
	}

	writer := db.NewWorker(conn)
	defer writer.Close()

	// Stores
	revocationStore := sqlitestore.NewRevocationStore(conn, writer)
	falsePositiveStore := sqlitestore.NewFalsePositiveStore(conn, writer)
	batchStore := sqlitestore.NewBatchStore(conn, writer)
	metricStore := sqlitestore.NewMetricStore(conn, writer)

	// Services
	guard := service.NewFalsePositiveGuard(cfg.ExpectedFPRate, cfg.ProblematicEpochAt)
	reconciler := service.NewReconciler(revocationStore, falsePositiveStore, metricStore, guard, logger)
	ledger := service.NewRevocationLedger(revocationStore, batchStore, metricStore, logger)

	reporter := service.NewFalsePositiveReporter(reconciler, service.ReporterConfig{
		IntervalHours: cfg.ReportIntervalHours,
	}, logger)
	reporter.Start(ctx)
	defer reporter.Stop()

	// HTTP
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:     logger,
		Addr:       cfg.HTTPAddr,
		Reconciler: reconciler,
		Ledger:     ledger,
	})

	go func() {
		logger.Printf("listening on %s", cfg.HTTPAddr)
		if err := srv.Start(); err != nil {
			logger.Printf("server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
