package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/neoedge/gateway/internal/cache"
	"github.com/neoedge/gateway/internal/config"
	"github.com/neoedge/gateway/internal/gateway"
	"github.com/neoedge/gateway/internal/gatewayctx"
	"github.com/neoedge/gateway/internal/httpapi"
	"github.com/neoedge/gateway/internal/logger"
	"github.com/neoedge/gateway/internal/opcua"
	gwws "github.com/neoedge/gateway/internal/websocket"
)

// writeHandlerWorkers mirrors the OPC UA stack's own internal worker pool
// for dispatching client writes (spec.md §5): several goroutines sharing
// one DataChangeEvent channel.
const writeHandlerWorkers = 4

var Version = "dev"

func main() {
	env := gatewayctx.LoadSettings()
	opSettings := config.LoadOperationalSettings()

	fmt.Println("========================================")
	fmt.Printf("   %s v%s\n", env.AppName, Version)
	fmt.Println("   Modbus <-> OPC UA edge gateway")
	fmt.Println("========================================")

	logCfg := logger.FromSettings(env)
	if err := logger.Init(logCfg); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Get()

	cfg, err := config.Load(opSettings.ConfigPath)
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	links := config.BuildLinks(cfg, log)

	registry, err := gateway.Build(config.ToTagSpecs(cfg), links)
	if err != nil {
		log.Fatal("failed to build tag registry", zap.Error(err))
	}

	security := opcua.LoadSecurityConfig(cfg.OPCUA.Users, env)
	log.Info("gateway boot settings",
		zap.String("app_name", env.AppName),
		zap.String("app_version", Version),
		zap.String("log_level", logCfg.Level),
		zap.String("cert_path", security.CertPath),
		zap.String("key_path", security.KeyPath),
		zap.Bool("auto_accept_certs", security.AutoAcceptCerts),
	)
	server := opcua.NewServer(cfg.OPCUA.Endpoint, cfg.OPCUA.Namespace, security, log)
	for _, entry := range registry.Entries() {
		initial := gateway.InitialValue(entry.Mapping.DataType)
		if err := server.AddNode(entry.NodeID, entry.Name, initial, entry.Writable, entry.VariantType); err != nil {
			log.Fatal("failed to add opc ua node", zap.String("node_id", entry.NodeID), zap.Error(err))
		}
	}

	tagCache := cache.New()

	hub := gwws.NewHub(log)
	go hub.Run()
	logger.WireBroadcastToHub(hub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler := gateway.NewScheduler(registry, links, server, tagCache, hub, config.PollInterval(cfg), log)
	go scheduler.Run(ctx)

	writeHandler := opcua.NewWriteHandler(registry, links, tagCache, hub, log)
	for i := 0; i < writeHandlerWorkers; i++ {
		go writeHandler.Run(ctx, server.Changes())
	}

	app := httpapi.New(httpapi.Dependencies{
		Cache:       tagCache,
		Hub:         hub,
		ConfigPath:  opSettings.ConfigPath,
		StagingPath: opSettings.StagingPath,
		Log:         log,
		AppName:     env.AppName,
		AppVersion:  Version,
	})

	go func() {
		if err := app.Listen(opSettings.ListenAddr); err != nil {
			log.Fatal("http server stopped", zap.Error(err))
		}
	}()

	log.Info("gateway fully operational", zap.String("listen_addr", opSettings.ListenAddr))
	fmt.Println("NeoEdge Gateway is fully operational.")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	fmt.Println("\nShutdown requested.")
	log.Info("gateway shutdown")
	cancel()
}
