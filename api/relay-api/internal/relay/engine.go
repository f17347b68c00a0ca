// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_relay

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/rapidaai/callbridge/api/relay-api/internal/backend"
	"github.com/rapidaai/callbridge/api/relay-api/internal/briefing"
	"github.com/rapidaai/callbridge/api/relay-api/internal/callcontrol"
	"github.com/rapidaai/callbridge/api/relay-api/internal/callrecord"
	"github.com/rapidaai/callbridge/api/relay-api/internal/detector"
	"github.com/rapidaai/callbridge/api/relay-api/internal/dispatch"
	"github.com/rapidaai/callbridge/api/relay-api/internal/extraction"
	"github.com/rapidaai/callbridge/api/relay-api/internal/pendingcall"
	"github.com/rapidaai/callbridge/api/relay-api/internal/session"
	"github.com/rapidaai/callbridge/config"
	"github.com/rapidaai/callbridge/pkg/commons"
	"github.com/rapidaai/callbridge/pkg/utils"
)

// errRelayDone signals a clean end of the relay from inside a pump so the
// sibling pump gets unblocked. Never surfaced to the caller.
var errRelayDone = errors.New("relay finished")

// Spoken to the caller when a transfer cannot go through. The conversation
// keeps running after either one.
const (
	transferUnavailableApology = "I apologize, but I'm unable to transfer you to a human agent at this moment. How else can I assist you?"
	transferFailedApology      = "I apologize, but I'm having trouble transferring your call right now. Let me continue to help you. What would you like to know?"
)

// Engine bridges one telephony media stream to one voice-agent conversation
// per call. It owns the two pumps, live-call decisions (transfer,
// completion) and the hand-off to post-call processing.
type Engine struct {
	logger       commons.Logger
	cfg          *config.AppConfig
	completion   *internal_detector.CompletionDetector
	transfer     *internal_detector.TransferDetector
	pendingCalls *internal_pendingcall.Store
	briefings    *internal_briefing.Cache
	extractor    internal_extraction.Extractor
	callControl  internal_callcontrol.CallController
	notifier     internal_backend.NotifierClient
	dispatcher   *internal_dispatch.Dispatcher
}

// NewEngine wires a relay engine. One engine serves all concurrent calls;
// per-call state lives in the session created per connection.
func NewEngine(
	logger commons.Logger,
	cfg *config.AppConfig,
	pendingCalls *internal_pendingcall.Store,
	briefings *internal_briefing.Cache,
	extractor internal_extraction.Extractor,
	callControl internal_callcontrol.CallController,
	notifier internal_backend.NotifierClient,
	dispatcher *internal_dispatch.Dispatcher,
) *Engine {
	return &Engine{
		logger:       logger,
		cfg:          cfg,
		completion:   internal_detector.NewCompletionDetector(),
		transfer:     internal_detector.NewTransferDetector(cfg.TransferKeywordList()),
		pendingCalls: pendingCalls,
		briefings:    briefings,
		extractor:    extractor,
		callControl:  callControl,
		notifier:     notifier,
		dispatcher:   dispatcher,
	}
}

// relayConn holds the per-connection moving parts of one bridged call.
type relayConn struct {
	engine    *Engine
	logger    commons.Logger
	session   *internal_session.Session
	telephony *websocket.Conn
	agent     *AgentConn
	direction string

	// telephonyWriteMu serializes outbound media frames; the upgrade
	// handler may also write control frames on teardown.
	telephonyWriteMu sync.Mutex
}

// HandleStream bridges the accepted telephony socket to a fresh agent
// conversation and blocks until the call is over. The caller owns closing
// the telephony socket after return.
func (e *Engine) HandleStream(ctx context.Context, telephonyConn *websocket.Conn) {
	agentConn, err := DialAgent(ctx, e.logger, e.cfg.Agent.WsURL, e.cfg.Agent.ApiKey)
	if err != nil {
		e.logger.Errorf("agent connection failed, dropping stream: %v", err)
		return
	}

	rc := &relayConn{
		engine:    e,
		logger:    e.logger,
		session:   internal_session.NewSession(e.logger),
		telephony: telephonyConn,
		agent:     agentConn,
		direction: internal_callrecord.DirectionInbound,
	}
	rc.run(ctx)
}

func (rc *relayConn) run(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return rc.pumpTelephony(gctx) })
	g.Go(func() error { return rc.pumpAgent(gctx) })

	// Unblock whichever pump is still stuck in a socket read once the
	// other finishes or the server shuts down.
	done := make(chan struct{})
	utils.Go(context.Background(), func() {
		select {
		case <-gctx.Done():
		case <-done:
		}
		rc.agent.Close()
		rc.telephony.Close()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errRelayDone) {
		rc.logger.Warnf("relay ended with error: callId=%s, err=%v", rc.session.CallID(), err)
	}
	close(done)

	rc.teardown(ctx)
}

// teardown closes the session exactly once and hands the summary to the
// post-call pipeline. Safe against double socket-close callbacks.
func (rc *relayConn) teardown(ctx context.Context) {
	sum, won := rc.session.Close()
	if !won {
		return
	}
	if sum.CallID != "" {
		rc.engine.pendingCalls.Remove(sum.CallID)
		if !sum.TransferRequested {
			rc.engine.briefings.Drop(sum.CallID)
		}
	}
	rc.logger.Infof("relay closed: callId=%s, turns=%d, transferred=%v",
		sum.CallID, len(sum.Conversation), sum.TransferRequested)
	rc.engine.dispatcher.DispatchAsync(ctx, sum, rc.direction)
}

// pumpTelephony forwards caller audio to the agent and reacts to stream
// lifecycle events.
func (rc *relayConn) pumpTelephony(ctx context.Context) error {
	for {
		_, message, err := rc.telephony.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return errRelayDone
			}
			return err
		}

		event, err := ParseTelephonyEvent(message)
		if err != nil {
			rc.logger.Debugf("skipping malformed stream frame: %v", err)
			continue
		}

		switch event.Event {
		case TelephonyEventStart:
			rc.handleStart(ctx, event)

		case TelephonyEventMedia:
			if event.Media == nil || event.Media.Payload == "" {
				continue
			}
			if frame, err := base64.StdEncoding.DecodeString(event.Media.Payload); err == nil {
				rc.session.AppendUserAudio(frame)
			}
			if err := rc.agent.SendUserAudio(event.Media.Payload); err != nil {
				return err
			}

		case TelephonyEventStop:
			rc.handleStop(ctx)
			return errRelayDone
		}
	}
}

func (rc *relayConn) handleStart(ctx context.Context, event *TelephonyEvent) {
	start := event.Start
	if start == nil {
		rc.logger.Warn("start event without start payload")
		return
	}

	cached, hadPending := rc.engine.pendingCalls.Get(start.CallSid)
	if hadPending {
		rc.direction = internal_callrecord.DirectionOutbound
	}
	phone := internal_session.ResolvePhoneNumber(cached, start.CustomParameters, start.To, start.From)
	if !rc.session.StartStream(event.StreamSid, start.CallSid, phone) {
		rc.logger.Warnf("duplicate start event ignored: callId=%s", start.CallSid)
		return
	}
	rc.notifyStatus(ctx, start.CallSid, internal_backend.StatusConnected, phone)
}

func (rc *relayConn) handleStop(ctx context.Context) {
	callID := rc.session.CallID()
	phone := rc.session.PhoneNumber()
	rc.session.BeginEnding()
	if callID != "" {
		rc.notifyStatus(ctx, callID, internal_backend.StatusCompleted, phone)
	}
	rc.logger.Infof("stream stopped: callId=%s", callID)
}

// pumpAgent forwards synthesized audio to the caller and watches the
// transcript for transfer and completion triggers.
func (rc *relayConn) pumpAgent(ctx context.Context) error {
	for {
		event, err := rc.agent.ReadEvent()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return errRelayDone
			}
			return err
		}

		switch event.Type {
		case AgentEventInitMetadata:
			rc.logger.Info("voice agent initialized")

		case AgentEventAudio:
			if event.AudioEvent == nil || event.AudioEvent.AudioBase64 == "" {
				continue
			}
			if frame, err := base64.StdEncoding.DecodeString(event.AudioEvent.AudioBase64); err == nil {
				rc.session.AppendAgentAudio(frame)
			}
			if err := rc.writeAgentAudio(event.AudioEvent.AudioBase64); err != nil {
				return err
			}

		case AgentEventUserTranscript:
			if event.UserTranscriptionEvent == nil {
				continue
			}
			rc.handleUserTranscript(ctx, event.UserTranscriptionEvent.UserTranscript)

		case AgentEventAgentResponse:
			if event.AgentResponseEvent == nil {
				continue
			}
			if ended := rc.handleAgentResponse(ctx, event.AgentResponseEvent.AgentResponse); ended {
				return errRelayDone
			}

		case AgentEventPing:
			if event.PingEvent == nil {
				continue
			}
			if err := rc.agent.SendPong(event.PingEvent.EventID); err != nil {
				return err
			}
		}
	}
}

// writeAgentAudio sends one synthesized frame back to the caller. Frames
// that arrive before the stream start are dropped; there is no stream token
// to tag them with yet.
func (rc *relayConn) writeAgentAudio(payloadBase64 string) error {
	streamID := rc.session.StreamID()
	if streamID == "" {
		return nil
	}
	rc.telephonyWriteMu.Lock()
	defer rc.telephonyWriteMu.Unlock()
	return rc.telephony.WriteJSON(outboundMedia{
		Event:     TelephonyEventMedia,
		StreamSid: streamID,
		Media:     &TelephonyMedia{Payload: payloadBase64},
	})
}

func (rc *relayConn) handleUserTranscript(ctx context.Context, text string) {
	if text == "" {
		return
	}
	rc.logger.Infof("user: %s", text)
	rc.session.AddUserTurn(text)

	if !rc.engine.transfer.ShouldTransfer(text) {
		return
	}
	if rc.engine.cfg.HumanAgentNumber == "" {
		rc.logger.Warn("transfer keyword detected but no human agent configured")
		if err := rc.agent.SendAgentResponse(transferUnavailableApology); err != nil {
			rc.logger.Warnf("unable to send transfer apology: %v", err)
		}
		return
	}
	if !rc.session.RequestTransfer() {
		return
	}
	// Off the pump: briefing extraction can take seconds and audio must
	// keep flowing until the provider redirects the call.
	conversation := rc.session.ConversationSnapshot()
	callID := rc.session.CallID()
	utils.Go(context.Background(), func() {
		rc.executeTransfer(context.WithoutCancel(ctx), callID, conversation)
	})
}

// executeTransfer prepares the human-agent briefing and redirects the call.
// A failed redirect rolls the session back so a later request can retry.
func (rc *relayConn) executeTransfer(ctx context.Context, callID string, conversation []internal_session.Turn) {
	profile := rc.engine.extractor.Extract(ctx, conversation)
	rc.engine.briefings.Put(callID, internal_extraction.BuildBriefing(profile))

	if err := rc.engine.callControl.Redirect(callID); err != nil {
		rc.logger.Errorf("transfer redirect failed: callId=%s, err=%v", callID, err)
		rc.engine.briefings.Drop(callID)
		rc.session.RollbackTransfer()
		if apologyErr := rc.agent.SendAgentResponse(transferFailedApology); apologyErr != nil {
			rc.logger.Warnf("unable to send transfer apology: %v", apologyErr)
		}
		return
	}
	rc.logger.Infof("transfer initiated: callId=%s", callID)
}

// handleAgentResponse records the agent turn and ends the call after the
// grace period when the agent has said goodbye. Returns true when the relay
// should finish.
func (rc *relayConn) handleAgentResponse(ctx context.Context, text string) bool {
	if text == "" {
		return false
	}
	rc.logger.Infof("agent: %s", text)
	rc.session.AddAgentTurn(text)

	if !rc.engine.completion.ShouldEndCall(text) {
		return false
	}
	if !rc.session.BeginEnding() {
		return false
	}
	rc.logger.Infof("completion detected, ending call: callId=%s", rc.session.CallID())

	// Let the farewell finish playing before hanging up.
	grace := time.Duration(rc.engine.cfg.CompletionGraceSeconds) * time.Second
	select {
	case <-time.After(grace):
	case <-ctx.Done():
		return true
	}

	if callID := rc.session.CallID(); callID != "" {
		if err := rc.engine.callControl.Terminate(callID); err != nil {
			rc.logger.Errorf("unable to end call %s: %v", callID, err)
		}
	}
	return true
}

func (rc *relayConn) notifyStatus(ctx context.Context, callID, status, phone string) {
	callType := internal_backend.CallTypeInbound
	if rc.direction == internal_callrecord.DirectionOutbound {
		callType = internal_backend.CallTypeOutbound
	}
	utils.Go(context.Background(), func() {
		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := rc.engine.notifier.NotifyStatus(notifyCtx, internal_backend.StatusUpdate{
			CallID:      callID,
			Status:      status,
			PhoneNumber: phone,
			CallType:    callType,
		}); err != nil {
			rc.logger.Warnf("status notification failed: callId=%s, status=%s, err=%v", callID, status, err)
		}
	})
}
