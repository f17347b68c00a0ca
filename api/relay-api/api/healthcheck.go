// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package relay_api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Healthz reports process liveness.
func (api *RelayApi) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": api.cfg.Name,
		"version": api.cfg.Version,
	})
}

// Readiness reports whether the service can take calls: the record store
// must answer and the agent socket must be configured.
func (api *RelayApi) Readiness(c *gin.Context) {
	if _, err := api.records.Recent(c.Request.Context(), 1); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "record store unreachable"})
		return
	}
	if api.cfg.Agent.WsURL == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "voice agent not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
