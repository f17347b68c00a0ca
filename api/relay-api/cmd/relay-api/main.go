// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	relayApi "github.com/rapidaai/callbridge/api/relay-api/api"
	"github.com/rapidaai/callbridge/api/relay-api/internal/backend"
	"github.com/rapidaai/callbridge/api/relay-api/internal/briefing"
	"github.com/rapidaai/callbridge/api/relay-api/internal/callcontrol"
	"github.com/rapidaai/callbridge/api/relay-api/internal/callrecord"
	"github.com/rapidaai/callbridge/api/relay-api/internal/dispatch"
	"github.com/rapidaai/callbridge/api/relay-api/internal/extraction"
	"github.com/rapidaai/callbridge/api/relay-api/internal/pendingcall"
	"github.com/rapidaai/callbridge/api/relay-api/internal/relay"
	relayRouters "github.com/rapidaai/callbridge/api/relay-api/router"
	"github.com/rapidaai/callbridge/config"
	"github.com/rapidaai/callbridge/pkg/commons"
)

func main() {
	vConfig, err := config.InitConfig()
	if err != nil {
		log.Fatalf("unable to initialize config: %v", err)
	}
	cfg, err := config.GetApplicationConfig(vConfig)
	if err != nil {
		log.Fatalf("invalid application config: %v", err)
	}

	logger, err := commons.NewApplicationLogger(
		commons.WithLogLevel(cfg.LogLevel),
		commons.WithLogFile(cfg.LogFile),
	)
	if err != nil {
		log.Fatalf("unable to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Infof("%s %s starting", cfg.Name, cfg.Version)

	records, err := internal_callrecord.NewStore(logger, cfg.CallRecordPath)
	if err != nil {
		logger.Errorf("unable to open call record store: %v", err)
		os.Exit(1)
	}

	callControl, err := internal_callcontrol.NewTwilioCallController(logger, cfg)
	if err != nil {
		logger.Errorf("unable to initialize call controller: %v", err)
		os.Exit(1)
	}

	pendingCalls := internal_pendingcall.NewStore()
	briefings := internal_briefing.NewCache(logger, time.Duration(cfg.BriefingTTLMinutes)*time.Minute)
	extractor := internal_extraction.NewExtractor(logger, cfg)
	notifier := internal_backend.NewNotifierClient(logger, cfg.BackendURL)
	dispatcher := internal_dispatch.NewDispatcher(logger, cfg.RecordingsDir, extractor, records, notifier)
	engine := internal_relay.NewEngine(logger, cfg, pendingCalls, briefings, extractor, callControl, notifier, dispatcher)

	api := relayApi.New(cfg, logger, engine, callControl, pendingCalls, briefings, records, notifier)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization"},
	}))

	relayRouters.RelayApiRoute(cfg, router, logger, api)
	relayRouters.HealthCheckRoutes(cfg, router, logger, api)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("server error: %v", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("forced shutdown: %v", err)
	}
	logger.Info("stopped")
}
