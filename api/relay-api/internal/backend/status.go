// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_backend

// Canonical call statuses reported to the backend.
const (
	StatusInitiated = "initiated"
	StatusRinging   = "ringing"
	StatusConnected = "connected"
	StatusOngoing   = "ongoing"
	StatusCompleted = "completed"
	StatusMissed    = "missed"
	StatusFailed    = "failed"
)

var providerStatusMap = map[string]string{
	"initiated":   StatusInitiated,
	"ringing":     StatusRinging,
	"in-progress": StatusConnected,
	"completed":   StatusCompleted,
	"busy":        StatusMissed,
	"no-answer":   StatusMissed,
	"failed":      StatusFailed,
	"canceled":    StatusFailed,
}

// MapProviderStatus translates a telephony provider call status into the
// canonical set. Unrecognized statuses pass through unchanged so the backend
// still sees them.
func MapProviderStatus(providerStatus string) string {
	if mapped, ok := providerStatusMap[providerStatus]; ok {
		return mapped
	}
	return providerStatus
}
