// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package relay_api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// The provider does not send an Origin header on stream connections.
var mediaUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Media upgrades the provider media-stream connection and hands it to the
// relay engine. Blocks for the lifetime of the call.
func (api *RelayApi) Media(c *gin.Context) {
	conn, err := mediaUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		api.logger.Errorf("media stream upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	api.logger.Info("media stream connected")
	api.engine.HandleStream(c.Request.Context(), conn)
	api.logger.Info("media stream disconnected")
}
