// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_relay

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/callbridge/api/relay-api/internal/backend"
	"github.com/rapidaai/callbridge/api/relay-api/internal/briefing"
	"github.com/rapidaai/callbridge/api/relay-api/internal/callrecord"
	"github.com/rapidaai/callbridge/api/relay-api/internal/dispatch"
	"github.com/rapidaai/callbridge/api/relay-api/internal/extraction"
	"github.com/rapidaai/callbridge/api/relay-api/internal/pendingcall"
	"github.com/rapidaai/callbridge/api/relay-api/internal/session"
	"github.com/rapidaai/callbridge/config"
	"github.com/rapidaai/callbridge/pkg/commons"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// fakeAgent is a scripted voice-agent socket. Messages from the engine land
// in received; anything pushed to send goes to the engine.
type fakeAgent struct {
	t        *testing.T
	received chan map[string]any
	send     chan any
}

func newFakeAgent(t *testing.T) (*fakeAgent, string) {
	fa := &fakeAgent{
		t:        t,
		received: make(chan map[string]any, 64),
		send:     make(chan any, 64),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)

		go func() {
			for v := range fa.send {
				if err := conn.WriteJSON(v); err != nil {
					return
				}
			}
			conn.Close()
		}()

		for {
			var msg map[string]any
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			fa.received <- msg
		}
	}))
	t.Cleanup(srv.Close)
	return fa, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func (fa *fakeAgent) expectMessage(timeout time.Duration) map[string]any {
	select {
	case msg := <-fa.received:
		return msg
	case <-time.After(timeout):
		fa.t.Fatal("timed out waiting for message to agent")
		return nil
	}
}

// stubCallController records control operations.
type stubCallController struct {
	mu          sync.Mutex
	redirected  []string
	terminated  []string
	redirectErr error
}

func (s *stubCallController) CreateCall(to string) (string, error) { return "CA-stub", nil }

func (s *stubCallController) Redirect(callID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.redirectErr != nil {
		return s.redirectErr
	}
	s.redirected = append(s.redirected, callID)
	return nil
}

func (s *stubCallController) Terminate(callID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terminated = append(s.terminated, callID)
	return nil
}

func (s *stubCallController) redirectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.redirected)
}

func (s *stubCallController) terminateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.terminated)
}

type fixedExtractor struct{ profile map[string]any }

func (f *fixedExtractor) Extract(ctx context.Context, conversation []internal_session.Turn) map[string]any {
	if f.profile != nil {
		return f.profile
	}
	return internal_extraction.EmptyProfile()
}

type relayFixture struct {
	engine       *Engine
	agent        *fakeAgent
	control      *stubCallController
	records      internal_callrecord.Store
	briefings    *internal_briefing.Cache
	pendingCalls *internal_pendingcall.Store
	serverURL    string
}

func newRelayFixture(t *testing.T) *relayFixture {
	t.Helper()
	logger, err := commons.NewApplicationLogger()
	require.NoError(t, err)

	agent, agentURL := newFakeAgent(t)

	cfg := &config.AppConfig{
		HumanAgentNumber:       "+15559999999",
		TransferKeywords:       "human,representative,real person",
		CompletionGraceSeconds: 0,
		RecordingsDir:          t.TempDir(),
	}
	cfg.Agent.WsURL = agentURL

	records, err := internal_callrecord.NewStore(logger, ":memory:")
	require.NoError(t, err)

	control := &stubCallController{}
	pendingCalls := internal_pendingcall.NewStore()
	briefings := internal_briefing.NewCache(logger, time.Minute)
	dispatcher := internal_dispatch.NewDispatcher(
		logger, cfg.RecordingsDir, &fixedExtractor{}, records,
		internal_backend.NewNotifierClient(logger, ""),
	)

	engine := NewEngine(logger, cfg, pendingCalls, briefings,
		&fixedExtractor{}, control, internal_backend.NewNotifierClient(logger, ""), dispatcher)

	fx := &relayFixture{
		engine:       engine,
		agent:        agent,
		control:      control,
		records:      records,
		briefings:    briefings,
		pendingCalls: pendingCalls,
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		engine.HandleStream(r.Context(), conn)
	}))
	t.Cleanup(srv.Close)
	fx.serverURL = "ws" + strings.TrimPrefix(srv.URL, "http")
	return fx
}

func (fx *relayFixture) dialTelephony(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(fx.serverURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func startEvent(callID, streamID, to, from string) TelephonyEvent {
	return TelephonyEvent{
		Event:     TelephonyEventStart,
		StreamSid: streamID,
		Start: &TelephonyStart{
			CallSid:   callID,
			StreamSid: streamID,
			To:        to,
			From:      from,
		},
	}
}

func TestEngine_InitSentOnConnect(t *testing.T) {
	fx := newRelayFixture(t)
	fx.dialTelephony(t)

	init := fx.agent.expectMessage(2 * time.Second)
	assert.Equal(t, "conversation_initiation_client_data", init["type"])
	override := init["conversation_config_override"].(map[string]any)
	asr := override["asr"].(map[string]any)
	tts := override["tts"].(map[string]any)
	assert.Equal(t, "ulaw_8000", asr["user_input_audio_format"])
	assert.Equal(t, "ulaw_8000", tts["output_format"])
}

func TestEngine_UserAudioForwarded(t *testing.T) {
	fx := newRelayFixture(t)
	conn := fx.dialTelephony(t)
	fx.agent.expectMessage(2 * time.Second) // init

	require.NoError(t, conn.WriteJSON(startEvent("CA1", "MZ1", "+15551234567", "")))

	payload := base64.StdEncoding.EncodeToString([]byte{0x7F, 0x7F})
	require.NoError(t, conn.WriteJSON(TelephonyEvent{
		Event:     TelephonyEventMedia,
		StreamSid: "MZ1",
		Media:     &TelephonyMedia{Payload: payload},
	}))

	chunk := fx.agent.expectMessage(2 * time.Second)
	assert.Equal(t, payload, chunk["user_audio_chunk"])
}

func TestEngine_AgentAudioRelayedToCaller(t *testing.T) {
	fx := newRelayFixture(t)
	conn := fx.dialTelephony(t)
	fx.agent.expectMessage(2 * time.Second) // init

	require.NoError(t, conn.WriteJSON(startEvent("CA1", "MZ1", "+15551234567", "")))
	// Give the start event time to land before the agent speaks.
	time.Sleep(100 * time.Millisecond)

	audio := base64.StdEncoding.EncodeToString([]byte{0x00, 0x00, 0x00})
	fx.agent.send <- map[string]any{
		"type":        "audio",
		"audio_event": map[string]any{"audio_base_64": audio},
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var out outboundMedia
	require.NoError(t, conn.ReadJSON(&out))
	assert.Equal(t, TelephonyEventMedia, out.Event)
	assert.Equal(t, "MZ1", out.StreamSid)
	assert.Equal(t, audio, out.Media.Payload)
}

func TestEngine_PingAnsweredWithPong(t *testing.T) {
	fx := newRelayFixture(t)
	fx.dialTelephony(t)
	fx.agent.expectMessage(2 * time.Second) // init

	fx.agent.send <- map[string]any{
		"type":       "ping",
		"ping_event": map[string]any{"event_id": float64(42)},
	}

	pong := fx.agent.expectMessage(2 * time.Second)
	assert.Equal(t, "pong", pong["type"])
	assert.Equal(t, float64(42), pong["event_id"])
}

func TestEngine_TransferKeywordTriggersRedirect(t *testing.T) {
	fx := newRelayFixture(t)
	conn := fx.dialTelephony(t)
	fx.agent.expectMessage(2 * time.Second) // init

	require.NoError(t, conn.WriteJSON(startEvent("CA1", "MZ1", "+15551234567", "")))
	time.Sleep(100 * time.Millisecond)

	fx.agent.send <- map[string]any{
		"type":                     "user_transcript",
		"user_transcription_event": map[string]any{"user_transcript": "I want to talk to a real person"},
	}

	assert.Eventually(t, func() bool {
		return fx.control.redirectCount() == 1
	}, 3*time.Second, 50*time.Millisecond)

	// The briefing must be waiting for the whisper pickup.
	assert.NotEqual(t, internal_briefing.DefaultFallback, fx.briefings.Pop("CA1"))
}

func TestEngine_RedirectFailureRollsBackTransfer(t *testing.T) {
	fx := newRelayFixture(t)
	fx.control.redirectErr = assert.AnError
	conn := fx.dialTelephony(t)
	fx.agent.expectMessage(2 * time.Second) // init

	require.NoError(t, conn.WriteJSON(startEvent("CA1", "MZ1", "+15551234567", "")))
	time.Sleep(100 * time.Millisecond)

	fx.agent.send <- map[string]any{
		"type":                     "user_transcript",
		"user_transcription_event": map[string]any{"user_transcript": "give me a human"},
	}

	// Failed redirect drops the briefing and re-arms the latch.
	assert.Eventually(t, func() bool {
		return fx.briefings.Pop("CA1") == internal_briefing.DefaultFallback
	}, 3*time.Second, 50*time.Millisecond)
	assert.Zero(t, fx.control.redirectCount())

	// The caller hears why the conversation continues.
	apology := fx.agent.expectMessage(2 * time.Second)
	assert.Equal(t, "agent_response", apology["type"])
	assert.Contains(t, apology["agent_response"], "having trouble transferring")
}

func TestEngine_TransferUnavailableApologizes(t *testing.T) {
	fx := newRelayFixture(t)
	fx.engine.cfg.HumanAgentNumber = ""
	conn := fx.dialTelephony(t)
	fx.agent.expectMessage(2 * time.Second) // init

	require.NoError(t, conn.WriteJSON(startEvent("CA1", "MZ1", "+15551234567", "")))
	time.Sleep(100 * time.Millisecond)

	fx.agent.send <- map[string]any{
		"type":                     "user_transcript",
		"user_transcription_event": map[string]any{"user_transcript": "connect me to a representative"},
	}

	apology := fx.agent.expectMessage(2 * time.Second)
	assert.Equal(t, "agent_response", apology["type"])
	assert.Contains(t, apology["agent_response"], "unable to transfer you")
	assert.Zero(t, fx.control.redirectCount())
}

func TestEngine_CompletionPhraseEndsCall(t *testing.T) {
	fx := newRelayFixture(t)
	conn := fx.dialTelephony(t)
	fx.agent.expectMessage(2 * time.Second) // init

	require.NoError(t, conn.WriteJSON(startEvent("CA1", "MZ1", "+15551234567", "")))
	time.Sleep(100 * time.Millisecond)

	fx.agent.send <- map[string]any{
		"type":                 "agent_response",
		"agent_response_event": map[string]any{"agent_response": "Thank you for your time. Have a great day!"},
	}

	assert.Eventually(t, func() bool {
		return fx.control.terminateCount() == 1
	}, 3*time.Second, 50*time.Millisecond)
}

func TestEngine_StopDispatchesPostCallPipeline(t *testing.T) {
	fx := newRelayFixture(t)
	conn := fx.dialTelephony(t)
	fx.agent.expectMessage(2 * time.Second) // init

	require.NoError(t, conn.WriteJSON(startEvent("CA1", "MZ1", "+15551234567", "")))
	time.Sleep(100 * time.Millisecond)

	// One transcript turn so the session is worth dispatching.
	fx.agent.send <- map[string]any{
		"type":                     "user_transcript",
		"user_transcription_event": map[string]any{"user_transcript": "hello there"},
	}
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, conn.WriteJSON(TelephonyEvent{Event: TelephonyEventStop, StreamSid: "MZ1"}))

	assert.Eventually(t, func() bool {
		record, err := fx.records.Get(context.Background(), "CA1")
		return err == nil && record.TranscriptPath != ""
	}, 5*time.Second, 100*time.Millisecond)
}

func TestEngine_OutboundDirectionFromPendingCall(t *testing.T) {
	fx := newRelayFixture(t)
	fx.pendingCalls.Set("CA9", "+15557654321")
	conn := fx.dialTelephony(t)
	fx.agent.expectMessage(2 * time.Second) // init

	// Start event without to/from: the pending mapping must resolve it.
	require.NoError(t, conn.WriteJSON(startEvent("CA9", "MZ9", "", "")))
	time.Sleep(100 * time.Millisecond)

	fx.agent.send <- map[string]any{
		"type":                     "user_transcript",
		"user_transcription_event": map[string]any{"user_transcript": "yes speaking"},
	}
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, conn.WriteJSON(TelephonyEvent{Event: TelephonyEventStop, StreamSid: "MZ9"}))

	assert.Eventually(t, func() bool {
		record, err := fx.records.Get(context.Background(), "CA9")
		return err == nil &&
			record.Direction == internal_callrecord.DirectionOutbound &&
			record.PhoneNumber == "+15557654321"
	}, 5*time.Second, 100*time.Millisecond)

	// The pending mapping is removed once the call is over.
	assert.Eventually(t, func() bool {
		return fx.pendingCalls.Len() == 0
	}, 2*time.Second, 50*time.Millisecond)
}
