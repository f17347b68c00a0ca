// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_pendingcall

import "sync"

// Store maps a freshly created outbound call identifier to the number that
// was dialed. The relay consults it when the telephony stream starts (the
// start event does not always carry the dialed number) and removes the
// mapping when the call ends. Shared across relay instances, so all access
// is serialized.
type Store struct {
	mu    sync.RWMutex
	calls map[string]string
}

// NewStore creates an empty pending-call store. One per process, injected
// into the call-initiation handler and the relay.
func NewStore() *Store {
	return &Store{calls: make(map[string]string)}
}

// Set registers the dialed number for a newly created call.
func (s *Store) Set(callID, phoneNumber string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[callID] = phoneNumber
}

// Get returns the dialed number for callID, if any. The entry stays until
// the call ends: the stream may reconnect after a failed transfer and needs
// the number again.
func (s *Store) Get(callID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	number, ok := s.calls[callID]
	return number, ok
}

// Remove deletes the mapping for callID.
func (s *Store) Remove(callID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.calls, callID)
}

// Len reports the number of pending mappings.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.calls)
}
