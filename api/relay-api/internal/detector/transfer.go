// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_detector

import "strings"

// TransferDetector reports whether a user utterance asks for a human agent.
// The keyword list comes from configuration so operators can tune it without
// touching this code. Matching is plain case-insensitive substring
// containment; no stemming, no fuzzing.
type TransferDetector struct {
	keywords []string
}

// NewTransferDetector returns a detector over the given keyword list.
// Keywords are normalized to lower case once, up front.
func NewTransferDetector(keywords []string) *TransferDetector {
	normalized := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			normalized = append(normalized, kw)
		}
	}
	return &TransferDetector{keywords: normalized}
}

// ShouldTransfer returns true when the user utterance contains any
// configured keyword. Pure and deterministic.
func (d *TransferDetector) ShouldTransfer(userText string) bool {
	text := strings.ToLower(strings.TrimSpace(userText))
	if text == "" {
		return false
	}
	for _, kw := range d.keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
