// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_extraction

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/callbridge/api/relay-api/internal/session"
	"github.com/rapidaai/callbridge/config"
	"github.com/rapidaai/callbridge/pkg/commons"
)

func newTestLogger(t *testing.T) commons.Logger {
	t.Helper()
	logger, err := commons.NewApplicationLogger()
	require.NoError(t, err)
	return logger
}

func sampleConversation() []internal_session.Turn {
	return []internal_session.Turn{
		{Role: internal_session.RoleAgent, Text: "Hello, am I speaking with Priya?"},
		{Role: internal_session.RoleUser, Text: "Yes. I have five years in backend engineering, current CTC twelve LPA."},
	}
}

// completionResponse mimics the chat-completion wire shape closely enough
// for the SDK to decode.
func completionResponse(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{
			{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]any{
					"role":    "assistant",
					"content": content,
				},
			},
		},
	}
}

func newServedExtractor(t *testing.T, handler http.HandlerFunc) (Extractor, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := &config.AppConfig{}
	cfg.Extraction.ApiKey = "test-key"
	cfg.Extraction.BaseURL = srv.URL
	cfg.Extraction.Model = "gpt-4o-mini"
	return NewExtractor(newTestLogger(t), cfg), srv
}

// ============================================================================
// Extraction
// ============================================================================

func TestExtractor_PopulatesProfile(t *testing.T) {
	ex, _ := newServedExtractor(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		body := `{"candidate_name":"Priya","experience_years":"5","current_ctc_lpa":"12"}`
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completionResponse(body))
	})

	profile := ex.Extract(context.Background(), sampleConversation())
	assert.Equal(t, "Priya", profile["candidate_name"])
	assert.Equal(t, "5", profile["experience_years"])
	assert.Equal(t, "12", profile["current_ctc_lpa"])
	assert.Nil(t, profile["email"], "unmentioned fields stay null")
	assert.Len(t, profile, len(profileFields), "profile always carries the full schema")
}

func TestExtractor_ServerFailureDegradesToEmptyProfile(t *testing.T) {
	ex, _ := newServedExtractor(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	profile := ex.Extract(context.Background(), sampleConversation())
	assert.Equal(t, EmptyProfile(), profile)
}

func TestExtractor_InvalidJSONDegradesToEmptyProfile(t *testing.T) {
	ex, _ := newServedExtractor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completionResponse("sorry, I cannot do that"))
	})

	profile := ex.Extract(context.Background(), sampleConversation())
	assert.Equal(t, EmptyProfile(), profile)
}

func TestExtractor_UnconfiguredReturnsEmptyProfile(t *testing.T) {
	ex := NewExtractor(newTestLogger(t), &config.AppConfig{})
	profile := ex.Extract(context.Background(), sampleConversation())
	assert.Equal(t, EmptyProfile(), profile)
}

func TestExtractor_EmptyConversationSkipsRequest(t *testing.T) {
	called := false
	ex, _ := newServedExtractor(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	profile := ex.Extract(context.Background(), nil)
	assert.Equal(t, EmptyProfile(), profile)
	assert.False(t, called)
}

// ============================================================================
// Briefing sentence
// ============================================================================

func TestBuildBriefing_AllFields(t *testing.T) {
	profile := EmptyProfile()
	profile["candidate_name"] = "Priya"
	profile["current_ctc_lpa"] = "12"
	profile["expected_ctc_lpa"] = "18"
	profile["experience_years"] = "5"
	profile["domain"] = "backend"
	profile["notice_period"] = "30 days"

	got := BuildBriefing(profile)
	assert.Equal(t,
		"Incoming transfer from the screening assistant. Candidate details: "+
			"Name is Priya, CTC is 12 LPA, Expected CTC is 18 LPA, "+
			"Experience is 5 years, Domain is backend, Notice period is 30 days.",
		got)
}

func TestBuildBriefing_PartialFields(t *testing.T) {
	profile := EmptyProfile()
	profile["candidate_name"] = "Arjun"

	got := BuildBriefing(profile)
	assert.Equal(t, "Incoming transfer from the screening assistant. Candidate details: Name is Arjun.", got)
}

func TestBuildBriefing_EmptyProfile(t *testing.T) {
	assert.Equal(t, "Incoming transfer. Details could not be extracted.", BuildBriefing(EmptyProfile()))
}

func TestBuildBriefing_EmptyStringsSkipped(t *testing.T) {
	profile := EmptyProfile()
	profile["candidate_name"] = ""
	assert.Equal(t, "Incoming transfer. Details could not be extracted.", BuildBriefing(profile))
}
