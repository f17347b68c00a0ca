// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package relay_api

import (
	"strings"

	"github.com/rapidaai/callbridge/api/relay-api/internal/backend"
	"github.com/rapidaai/callbridge/api/relay-api/internal/briefing"
	"github.com/rapidaai/callbridge/api/relay-api/internal/callcontrol"
	"github.com/rapidaai/callbridge/api/relay-api/internal/callrecord"
	"github.com/rapidaai/callbridge/api/relay-api/internal/pendingcall"
	"github.com/rapidaai/callbridge/api/relay-api/internal/relay"
	"github.com/rapidaai/callbridge/config"
	"github.com/rapidaai/callbridge/pkg/commons"
)

// RelayApi carries the shared dependencies for all call webhooks and the
// media stream endpoint.
type RelayApi struct {
	cfg          *config.AppConfig
	logger       commons.Logger
	engine       *internal_relay.Engine
	callControl  internal_callcontrol.CallController
	pendingCalls *internal_pendingcall.Store
	briefings    *internal_briefing.Cache
	records      internal_callrecord.Store
	notifier     internal_backend.NotifierClient
}

// New builds the relay API surface.
func New(
	cfg *config.AppConfig,
	logger commons.Logger,
	engine *internal_relay.Engine,
	callControl internal_callcontrol.CallController,
	pendingCalls *internal_pendingcall.Store,
	briefings *internal_briefing.Cache,
	records internal_callrecord.Store,
	notifier internal_backend.NotifierClient,
) *RelayApi {
	return &RelayApi{
		cfg:          cfg,
		logger:       logger,
		engine:       engine,
		callControl:  callControl,
		pendingCalls: pendingCalls,
		briefings:    briefings,
		records:      records,
		notifier:     notifier,
	}
}

// mediaStreamURL derives the wss media endpoint from the public server URL.
func (api *RelayApi) mediaStreamURL() string {
	base := strings.TrimSuffix(api.cfg.ServerURL, "/")
	base = strings.Replace(base, "https://", "wss://", 1)
	base = strings.Replace(base, "http://", "ws://", 1)
	return base + "/media"
}
