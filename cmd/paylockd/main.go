package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"paylock/config"
	"paylock/native/arbitration"
	"paylock/native/bank"
	"paylock/native/escrow"
	"paylock/observability"
	"paylock/observability/logging"
	"paylock/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup("paylockd", cfg.Environment)

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "escrow"))
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()
	state := storage.NewState(db)

	arbiterAddr, err := config.ParseAddress(cfg.Escrow.Arbiter)
	if err != nil {
		logger.Error("invalid arbiter address", slog.Any("error", err))
		os.Exit(1)
	}
	vaultAddr, err := config.ParseAddress(cfg.Escrow.Vault)
	if err != nil {
		logger.Error("invalid vault address", slog.Any("error", err))
		os.Exit(1)
	}
	sinkAddr, err := config.ParseAddress(cfg.Escrow.FeeSink)
	if err != nil {
		logger.Error("invalid fee sink address", slog.Any("error", err))
		os.Exit(1)
	}

	authority := arbitration.NewAuthority(arbiterAddr)
	if err := authority.SetStore(state); err != nil {
		logger.Error("failed to restore authority record", slog.Any("error", err))
		os.Exit(1)
	}

	params, err := config.NewStore(cfg, authority)
	if err != nil {
		logger.Error("failed to build parameter store", slog.Any("error", err))
		os.Exit(1)
	}

	engine := escrow.NewEngine()
	engine.SetState(state)
	engine.SetSettler(bank.NewLedger(state))
	engine.SetParams(params)
	engine.SetArbiter(authority)
	engine.SetVault(vaultAddr)
	engine.SetFeeSink(sinkAddr)
	engine.SetPauses(params)
	engine.SetEmitter(observability.NewMetricsEmitter(nil))

	logger.Info("escrow ledger ready",
		slog.String("dataDir", cfg.DataDir),
		slog.String("arbiter", cfg.Escrow.Arbiter),
	)

	http.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(cfg.MetricsAddress, nil); err != nil {
			logger.Error("metrics listener stopped", slog.Any("error", err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down")
}
