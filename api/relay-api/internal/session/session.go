// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_session

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rapidaai/callbridge/pkg/commons"
)

// Session state constants. Transitions only move forward except for the
// single transfer rollback (transfer_pending → streaming on a failed
// redirect).
const (
	StateConnecting      = "connecting"       // created, waiting for the stream start event
	StateStreaming       = "streaming"        // both directions relaying
	StateTransferPending = "transfer_pending" // redirect to a human requested
	StateEnding          = "ending"           // stop received or completion detected
	StateClosed          = "closed"           // terminal; both sockets confirmed closed
)

// Turn roles.
const (
	RoleUser  = "user"
	RoleAgent = "agent"
)

// PhoneUnknown is the sentinel used when no number could be resolved.
// PhoneNumber is never empty once the stream has started.
const PhoneUnknown = "unknown"

// Turn is one utterance in the conversation transcript.
type Turn struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Summary is an immutable snapshot of a finished session, handed to the
// post-call dispatcher. Audio frames stay in their compressed wire format;
// decoding happens off the relay's hot path.
type Summary struct {
	CallID            string
	StreamID          string
	PhoneNumber       string
	Conversation      []Turn
	UserAudio         [][]byte
	AgentAudio        [][]byte
	TransferRequested bool
	StartedAt         time.Time
	EndedAt           time.Time
}

// Session owns all per-call state. Both relay pumps mutate it only through
// these methods; the internal mutex is the single serialization point, so
// neither pump ever sees a torn update. A session lives exactly as long as
// its two sockets.
type Session struct {
	logger commons.Logger

	// id correlates log lines before the call identifier is known.
	id string

	mu                sync.Mutex
	state             string
	callID            string
	streamID          string
	phoneNumber       string
	conversation      []Turn
	userAudio         [][]byte
	agentAudio        [][]byte
	transferRequested bool
	startedAt         time.Time

	// clock is injectable for testing; defaults to time.Now.
	clock func() time.Time
}

// NewSession creates a session in the connecting state.
func NewSession(logger commons.Logger) *Session {
	s := &Session{
		logger: logger,
		id:     uuid.New().String(),
		state:  StateConnecting,
		clock:  time.Now,
	}
	s.startedAt = s.clock()
	logger.Debugf("session created: sessionId=%s", s.id)
	return s
}

// ID returns the internal session identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CallID returns the telephony call identifier, empty before stream start.
func (s *Session) CallID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callID
}

// StreamID returns the telephony stream token, empty before stream start.
func (s *Session) StreamID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamID
}

// PhoneNumber returns the resolved number, empty before stream start.
func (s *Session) PhoneNumber() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phoneNumber
}

// StartStream moves connecting → streaming on the first start event,
// recording the stream token, call identifier and resolved number.
// Returns false if the session is not in the connecting state (duplicate
// start events are ignored).
func (s *Session) StartStream(streamID, callID, phoneNumber string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnecting {
		return false
	}
	s.state = StateStreaming
	s.streamID = streamID
	s.callID = callID
	if phoneNumber == "" {
		phoneNumber = PhoneUnknown
	}
	s.phoneNumber = phoneNumber
	s.logger.Infof("call started: callId=%s, phone=%s", callID, phoneNumber)
	return true
}

// AddUserTurn appends a user utterance to the transcript.
func (s *Session) AddUserTurn(text string) {
	s.addTurn(RoleUser, text)
}

// AddAgentTurn appends an agent utterance to the transcript.
func (s *Session) AddAgentTurn(text string) {
	s.addTurn(RoleAgent, text)
}

func (s *Session) addTurn(role, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	s.conversation = append(s.conversation, Turn{
		Role:      role,
		Text:      text,
		Timestamp: s.clock(),
	})
}

// AppendUserAudio records one compressed user media frame.
func (s *Session) AppendUserAudio(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	s.userAudio = append(s.userAudio, frame)
}

// AppendAgentAudio records one compressed agent audio frame.
func (s *Session) AppendAgentAudio(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	s.agentAudio = append(s.agentAudio, frame)
}

// RequestTransfer attempts the streaming → transfer_pending transition.
// Only the first caller wins; the transferRequested latch suppresses
// duplicate transfer attempts for the rest of the session unless it is
// explicitly rolled back.
func (s *Session) RequestTransfer() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateStreaming || s.transferRequested {
		return false
	}
	s.transferRequested = true
	s.state = StateTransferPending
	s.logger.Infof("transfer requested: callId=%s", s.callID)
	return true
}

// RollbackTransfer undoes a failed transfer so a later request can retry.
// Only valid while the transfer is still pending.
func (s *Session) RollbackTransfer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateTransferPending {
		return
	}
	s.transferRequested = false
	s.state = StateStreaming
	s.logger.Warnf("transfer rolled back: callId=%s", s.callID)
}

// TransferRequested reports the latch state.
func (s *Session) TransferRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transferRequested
}

// BeginEnding moves streaming/transfer_pending → ending. Returns true for
// the first caller only; stop events and completion detection can race and
// both call this.
func (s *Session) BeginEnding() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateConnecting, StateStreaming, StateTransferPending:
		s.state = StateEnding
		return true
	}
	return false
}

// Close moves the session to its terminal state. Returns true exactly once
// per session no matter how many times it is called or from which pump;
// the caller that wins performs the post-call hand-off.
func (s *Session) Close() (Summary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return Summary{}, false
	}
	s.state = StateClosed
	return Summary{
		CallID:            s.callID,
		StreamID:          s.streamID,
		PhoneNumber:       s.phoneNumber,
		Conversation:      append([]Turn(nil), s.conversation...),
		UserAudio:         s.userAudio,
		AgentAudio:        s.agentAudio,
		TransferRequested: s.transferRequested,
		StartedAt:         s.startedAt,
		EndedAt:           s.clock(),
	}, true
}

// ConversationSnapshot returns a copy of the transcript so far, for the
// pre-transfer briefing extraction.
func (s *Session) ConversationSnapshot() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Turn(nil), s.conversation...)
}

// Dispatchable reports whether a finished session carries enough data for
// post-call processing. The unknown-number sentinel still dispatches; the
// artifacts matter even when the caller could not be identified.
func (sum Summary) Dispatchable() bool {
	return len(sum.Conversation) > 0 && sum.CallID != "" && sum.PhoneNumber != ""
}

// ResolvePhoneNumber picks the best-effort number for a starting stream.
// Resolution order: the cached pending-outbound mapping, the to_number
// custom parameter, the outbound "to" field, the inbound "from" field, and
// finally the unknown sentinel. A "client:" prefix is stripped. Never
// returns empty.
func ResolvePhoneNumber(cached string, customParams map[string]string, to, from string) string {
	number := cached
	if number == "" && customParams != nil {
		number = customParams["to_number"]
	}
	if number == "" {
		number = to
	}
	if number == "" {
		number = from
	}
	number = strings.TrimPrefix(number, "client:")
	if number == "" {
		return PhoneUnknown
	}
	return number
}
