// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_relay

import "encoding/json"

// Telephony media-stream event types.
const (
	TelephonyEventStart = "start"
	TelephonyEventMedia = "media"
	TelephonyEventStop  = "stop"
)

// TelephonyEvent is one inbound frame on the provider media stream.
type TelephonyEvent struct {
	Event     string          `json:"event"`
	StreamSid string          `json:"streamSid,omitempty"`
	Start     *TelephonyStart `json:"start,omitempty"`
	Media     *TelephonyMedia `json:"media,omitempty"`
	Stop      *TelephonyStop  `json:"stop,omitempty"`
	Raw       json.RawMessage `json:"-"`
}

// TelephonyStart carries call identity on the first stream frame.
type TelephonyStart struct {
	AccountSid       string            `json:"accountSid"`
	CallSid          string            `json:"callSid"`
	StreamSid        string            `json:"streamSid"`
	Tracks           []string          `json:"tracks"`
	From             string            `json:"from"`
	To               string            `json:"to"`
	CustomParameters map[string]string `json:"customParameters"`
}

// TelephonyMedia carries one base64 audio frame.
type TelephonyMedia struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

// TelephonyStop signals the end of the stream.
type TelephonyStop struct {
	AccountSid string `json:"accountSid"`
	CallSid    string `json:"callSid"`
}

// outboundMedia is the synthesized-audio frame written back to the provider,
// tagged with the stream token.
type outboundMedia struct {
	Event     string          `json:"event"`
	StreamSid string          `json:"streamSid"`
	Media     *TelephonyMedia `json:"media"`
}

// ParseTelephonyEvent decodes one raw stream frame. Unknown event types
// decode fine and are skipped by the pump.
func ParseTelephonyEvent(message []byte) (*TelephonyEvent, error) {
	var event TelephonyEvent
	if err := json.Unmarshal(message, &event); err != nil {
		return nil, err
	}
	event.Raw = message
	return &event, nil
}
