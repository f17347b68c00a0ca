// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/rapidaai/callbridge/pkg/commons"
)

// Voice-AI conversation event types.
const (
	AgentEventInitMetadata   = "conversation_initiation_metadata"
	AgentEventAudio          = "audio"
	AgentEventUserTranscript = "user_transcript"
	AgentEventAgentResponse  = "agent_response"
	AgentEventPing           = "ping"
)

// AgentEvent is one inbound message on the conversation socket.
type AgentEvent struct {
	Type string `json:"type"`

	AudioEvent *struct {
		AudioBase64 string `json:"audio_base_64"`
	} `json:"audio_event,omitempty"`

	UserTranscriptionEvent *struct {
		UserTranscript string `json:"user_transcript"`
	} `json:"user_transcription_event,omitempty"`

	AgentResponseEvent *struct {
		AgentResponse string `json:"agent_response"`
	} `json:"agent_response_event,omitempty"`

	PingEvent *struct {
		EventID any `json:"event_id"`
	} `json:"ping_event,omitempty"`
}

// agentInitMessage declares the audio formats for the session before any
// audio flows. Both directions run the provider's native encoding so no
// transcoding happens on the hot path.
type agentInitMessage struct {
	Type                       string `json:"type"`
	ConversationConfigOverride struct {
		ASR struct {
			Quality              string `json:"quality"`
			UserInputAudioFormat string `json:"user_input_audio_format"`
		} `json:"asr"`
		TTS struct {
			OutputFormat string `json:"output_format"`
		} `json:"tts"`
	} `json:"conversation_config_override"`
}

// AgentConn is the write-serialized conversation socket. The telephony pump
// sends user audio and the agent pump sends pong replies, so every write
// goes through one mutex.
type AgentConn struct {
	logger commons.Logger
	conn   *websocket.Conn

	writeMu sync.Mutex
}

// DialAgent opens the conversation socket and sends the initialization
// message. The API key travels in a header; an empty key omits it.
func DialAgent(ctx context.Context, logger commons.Logger, wsURL, apiKey string) (*AgentConn, error) {
	header := http.Header{}
	if apiKey != "" {
		header.Set("xi-api-key", apiKey)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("unable to connect voice agent at %s: %w", wsURL, err)
	}

	ac := &AgentConn{logger: logger, conn: conn}
	if err := ac.sendInit(); err != nil {
		conn.Close()
		return nil, err
	}
	logger.Info("voice agent connected")
	return ac, nil
}

func (ac *AgentConn) sendInit() error {
	init := agentInitMessage{Type: "conversation_initiation_client_data"}
	init.ConversationConfigOverride.ASR.Quality = "high"
	init.ConversationConfigOverride.ASR.UserInputAudioFormat = "ulaw_8000"
	init.ConversationConfigOverride.TTS.OutputFormat = "ulaw_8000"
	if err := ac.writeJSON(init); err != nil {
		return fmt.Errorf("unable to send agent initialization: %w", err)
	}
	return nil
}

// SendUserAudio forwards one base64 telephony frame to the agent.
func (ac *AgentConn) SendUserAudio(payloadBase64 string) error {
	return ac.writeJSON(map[string]string{"user_audio_chunk": payloadBase64})
}

// SendPong echoes a ping event id. Required immediately; the agent drops
// the conversation when pings go unanswered.
func (ac *AgentConn) SendPong(eventID any) error {
	return ac.writeJSON(map[string]any{"type": "pong", "event_id": eventID})
}

// SendAgentResponse injects an utterance into the conversation so the agent
// speaks it to the caller. Used when a transfer cannot go through and the
// conversation has to continue.
func (ac *AgentConn) SendAgentResponse(text string) error {
	return ac.writeJSON(map[string]string{"type": "agent_response", "agent_response": text})
}

// ReadEvent blocks for the next conversation event.
func (ac *AgentConn) ReadEvent() (*AgentEvent, error) {
	_, message, err := ac.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	var event AgentEvent
	if err := json.Unmarshal(message, &event); err != nil {
		return nil, fmt.Errorf("unable to decode agent event: %w", err)
	}
	return &event, nil
}

// Close shuts the socket down. Safe to call from any routine.
func (ac *AgentConn) Close() error {
	return ac.conn.Close()
}

func (ac *AgentConn) writeJSON(v any) error {
	ac.writeMu.Lock()
	defer ac.writeMu.Unlock()
	return ac.conn.WriteJSON(v)
}
