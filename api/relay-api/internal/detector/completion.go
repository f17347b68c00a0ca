// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_detector

import "strings"

// CompletionRule classifies an agent utterance as call-ending. A rule fires
// when the utterance contains any phrase from Phrases, or when every
// category in Categories is represented by at least one of its signals.
// Keeping the policy declarative lets it be tuned and tested apart from the
// relay loop.
type CompletionRule struct {
	Phrases    []string
	Categories [][]string
}

// defaultCompletionRules require either a literal closing statement or the
// co-occurrence of an acknowledgment, a farewell, and a closing wish.
// Individually weak signals ("thanks", "goodbye" alone) never fire.
var defaultCompletionRules = []CompletionRule{
	{
		Phrases: []string{
			"goodbye and have a great day",
			"goodbye and take care",
			"goodbye and all the best",
			"thank you for your time and goodbye",
			"thanks for your time and goodbye",
			"thank you and goodbye",
			"screening is complete",
			"interview is complete",
			"that concludes our interview",
			"that concludes our screening",
			"we'll be in touch. goodbye",
			"we will be in touch. goodbye",
			"we'll get back to you. goodbye",
			"we will get back to you. goodbye",
			"we'll contact you. goodbye",
			"we will contact you. goodbye",
			"end of interview",
			"end of screening",
		},
	},
	{
		Categories: [][]string{
			{"thank you", "thanks"},
			{"goodbye", "good bye"},
			{"have a great", "have a nice", "take care", "all the best", "best of luck"},
		},
	},
}

// CompletionDetector reports whether an agent utterance should end the call.
type CompletionDetector struct {
	rules []CompletionRule
}

// NewCompletionDetector returns a detector with the default closing rules.
func NewCompletionDetector() *CompletionDetector {
	return &CompletionDetector{rules: defaultCompletionRules}
}

// NewCompletionDetectorWithRules returns a detector with a custom rule set.
func NewCompletionDetectorWithRules(rules []CompletionRule) *CompletionDetector {
	return &CompletionDetector{rules: rules}
}

// ShouldEndCall returns true when the agent utterance is a clear closing
// statement. Pure and deterministic.
func (d *CompletionDetector) ShouldEndCall(agentText string) bool {
	text := strings.ToLower(strings.TrimSpace(agentText))
	if text == "" {
		return false
	}

	for _, rule := range d.rules {
		if rule.matches(text) {
			return true
		}
	}
	return false
}

func (r CompletionRule) matches(text string) bool {
	for _, phrase := range r.Phrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}

	if len(r.Categories) == 0 {
		return false
	}
	for _, signals := range r.Categories {
		if !containsAny(text, signals) {
			return false
		}
	}
	return true
}

func containsAny(text string, signals []string) bool {
	for _, s := range signals {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}
