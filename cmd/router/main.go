package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"YieldRouter/internal/allocator"
	"YieldRouter/internal/config"
	"YieldRouter/internal/logger"
	"YieldRouter/internal/notifier"
	"YieldRouter/internal/recorder"
	"YieldRouter/internal/scheduler"
	"YieldRouter/internal/store"
	"YieldRouter/internal/strategy"

	"github.com/ethereum/go-ethereum/common"
)

func main() {
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		l := logger.New(logger.Config{})
		l.Fatal().Err(err).Msg("Load config")
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Config validation")
	}
	log.Info().Str("backend", cfg.Backend).Msg("YieldRouter starting")

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	be, err := buildBackend(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Init backend")
	}
	defer be.close()

	governors := cfg.GovernorAddresses()
	if len(governors) == 0 {
		governors = []common.Address{be.env.Self}
	}
	operator := governors[0]

	mgr, err := strategy.NewManager(cfg.Strategy.Name, be.env, strategy.Params{
		MinExpectedSwapBps: cfg.Strategy.MinExpectedSwapBps,
		MaxLossBps:         cfg.Strategy.MaxLossBps,
		WantIndex:          cfg.Strategy.WantIndex,
		InvestmentIndex:    cfg.Strategy.InvestmentIndex,
	}, governors, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Init strategy")
	}

	// Saved parameters override the config file
	params, err := store.NewParamStore(cfg.Store.ParamsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Init param store")
	}
	if restored, err := params.Restore(mgr, operator); err != nil {
		log.Fatal().Err(err).Msg("Restore params")
	} else if restored {
		p := mgr.Params()
		log.Info().Uint64("min_expected_swap_bps", p.MinExpectedSwapBps).Uint64("max_loss_bps", p.MaxLossBps).Msg("Params restored")
	}

	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log)
		if err != nil {
			log.Warn().Err(err).Msg("Init sqlite recorder failed, using noop")
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	var tn *notifier.TelegramNotifier
	deps := scheduler.Deps{
		Harvester: allocator.NewHarvester(mgr, be.book, log),
		Manager:   mgr,
		Book:      be.book,
		Params:    params,
		Recorder:  rec,
		Operator:  operator,
		Decimals:  be.decimals,
	}
	if cfg.Telegram.BotToken != "" {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log)
		deps.Notifier = tn
	}

	sched := scheduler.NewScheduler(ctx, deps, log)
	if err := sched.RegisterAll(cfg.Schedule.HarvestCron, cfg.Schedule.TendCron); err != nil {
		log.Fatal().Err(err).Msg("Register cron tasks")
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info().Msg("Telegram polling started")
	} else {
		log.Info().Msg("Telegram not configured, notifications go to the log")
	}

	if os.Getenv("RUN_ON_START") == "true" {
		log.Info().Msg("RUN_ON_START enabled, harvesting now")
		go sched.RunHarvestNow()
	}

	log.Info().Msg("YieldRouter is running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("Shutdown signal received, stopping...")
	cancel()
}
