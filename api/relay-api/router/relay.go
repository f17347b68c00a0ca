// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package relay_routers

import (
	"github.com/gin-gonic/gin"

	relayApi "github.com/rapidaai/callbridge/api/relay-api/api"
	"github.com/rapidaai/callbridge/config"
	"github.com/rapidaai/callbridge/pkg/commons"
)

// RelayApiRoute mounts the call webhooks, the media stream and the call
// management endpoints.
func RelayApiRoute(cfg *config.AppConfig, engine *gin.Engine, logger commons.Logger, api *relayApi.RelayApi) {
	logger.Info("Relay routes added to engine.")

	// Provider webhooks. The provider posts form-encoded callbacks.
	engine.POST("/voice", api.Voice)
	engine.POST("/transfer", api.Transfer)
	engine.POST("/transfer-status", api.TransferStatus)
	engine.POST("/whisper", api.Whisper)
	engine.POST("/status", api.Status)

	// Media stream socket.
	engine.GET("/media", api.Media)

	// Call management for the operator frontend.
	engine.POST("/call/outbound", api.OutboundCall)
	engine.GET("/calls", api.Calls)
}

// HealthCheckRoutes mounts liveness and readiness probes.
func HealthCheckRoutes(cfg *config.AppConfig, engine *gin.Engine, logger commons.Logger, api *relayApi.RelayApi) {
	logger.Info("Internal HealthCheckRoutes added to engine.")
	apiv1 := engine.Group("")
	{
		apiv1.GET("/readiness/", api.Readiness)
		apiv1.GET("/healthz/", api.Healthz)
	}
}
