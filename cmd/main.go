package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/r1k0/nuxhash/internal/config"
	"github.com/r1k0/nuxhash/internal/devices"
	"github.com/r1k0/nuxhash/internal/handlers"
	"github.com/r1k0/nuxhash/internal/lib"
	"github.com/r1k0/nuxhash/internal/miners"
	"github.com/r1k0/nuxhash/internal/miners/excavator"
	"github.com/r1k0/nuxhash/internal/mining"
	"github.com/r1k0/nuxhash/internal/nicehash"
	"github.com/r1k0/nuxhash/internal/orchestrator"
	"github.com/r1k0/nuxhash/internal/switching"
)

const statusHistorySize = 720

func main() {
	_ = godotenv.Load()

	var cfg config.Config
	err := config.LoadConfig(&cfg, &os.Args)
	if err != nil {
		panic(err)
	}
	cfg.SetDefaults()

	log, err := lib.NewLogger(cfg.Log.LevelApp, cfg.Log.Color, cfg.Log.IsProd, cfg.Log.JSON, cfg.Log.FilePath)
	if err != nil {
		panic(err)
	}

	schedulerLog, err := lib.NewLogger(cfg.Log.LevelScheduler, cfg.Log.Color, cfg.Log.IsProd, cfg.Log.JSON, cfg.Log.FilePath)
	if err != nil {
		panic(err)
	}

	minerLog, err := lib.NewLogger(cfg.Log.LevelMiner, cfg.Log.Color, cfg.Log.IsProd, cfg.Log.JSON, cfg.Log.FilePath)
	if err != nil {
		panic(err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-shutdownChan
		log.Warnf("Received signal: %s", s)
		cancel()

		s = <-shutdownChan
		log.Warnf("Received signal: %s. Forcing exit...", s)
		os.Exit(1)
	}()

	defer func() {
		_ = log.Sync()
	}()

	providers := []devices.Provider{devices.NewNvidia()}
	if cfg.Devices.EnableCPU {
		providers = append(providers, devices.NewCPU())
	}
	devs, err := devices.NewMerged(log.Named("DEVICES"), providers...).EnumerateDevices(ctx)
	if err != nil {
		panic(err)
	}
	if len(devs) == 0 {
		log.Warnf("no mining devices detected")
	}

	benchmarks, err := mining.LoadBenchmarks(cfg.Benchmarks.FilePath)
	if err != nil {
		panic(err)
	}

	nhClient, err := nicehash.NewClient(cfg.NiceHash.APIBaseURL, cfg.NiceHash.Region, log.Named("NICEHASH"))
	if err != nil {
		panic(err)
	}

	exc := excavator.New(
		cfg.Miner.ExcavatorPath,
		cfg.Miner.ExcavatorAPIHost,
		cfg.Miner.ExcavatorAPIPort,
		cfg.NiceHash.Wallet,
		cfg.NiceHash.Workername,
		minerLog.Named("EXCAVATOR"),
	)

	engines := lib.NewCollection[miners.Miner]()
	engines.Store(exc)

	recorder := handlers.NewRecorder(statusHistorySize)

	factory := func() *orchestrator.Orchestrator {
		return orchestrator.New(
			orchestrator.Settings{
				SwitchInterval:    cfg.Switching.Interval,
				StatusInterval:    cfg.Status.Interval,
				InitRetryInterval: orchestrator.DefaultInitRetryInterval,
			},
			devs,
			benchmarks,
			nhClient,
			switching.NewNaive(cfg.Switching.Threshold),
			[]miners.Miner{exc},
			recorder,
			schedulerLog.Named("ORCHESTRATOR"),
		)
	}
	controller := orchestrator.NewController(factory, log.Named("CONTROLLER"))

	balance := orchestrator.NewBalanceTracker(
		cfg.NiceHash.Wallet,
		cfg.Balance.Interval,
		nhClient,
		recorder,
		log.Named("BALANCE"),
	)
	balanceTask := lib.NewTask(balance)
	balanceTask.Start(ctx)

	handl := handlers.NewHTTPHandler(ctx, controller, recorder, engines, devs, &cfg, log.Named("HTTP"))

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.SetTrustedProxies(nil)
	r.Use(gin.Recovery())

	r.GET("/status", handl.GetStatus)
	r.GET("/status/history", handl.GetStatusHistory)
	r.GET("/devices", handl.GetDevices)
	r.GET("/balance", handl.GetBalance)
	r.GET("/config", handl.GetConfig)
	r.GET("/miners", handl.GetMiners)

	r.POST("/mining/start", handl.StartMining)
	r.POST("/mining/stop", handl.StopMining)

	go func() {
		addr := cfg.Web.Address
		log.Infof("http server is listening: %s", addr)

		err = r.Run(addr)
		if err != nil {
			panic(err)
		}
	}()

	err = controller.StartMining(ctx)
	if err != nil {
		panic(err)
	}

	<-ctx.Done()
	controller.StopMining()
	<-balanceTask.Stop()
	log.Infof("App exited due to %s", ctx.Err())
}
