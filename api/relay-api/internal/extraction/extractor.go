// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/rapidaai/callbridge/api/relay-api/internal/session"
	"github.com/rapidaai/callbridge/config"
	"github.com/rapidaai/callbridge/pkg/commons"
)

// profileFields is the fixed candidate schema. Every extraction result
// carries exactly these keys; unmentioned fields are null.
var profileFields = []string{
	"candidate_name",
	"current_company",
	"current_role",
	"desired_role",
	"domain",
	"notice_period",
	"current_location",
	"relocation_willing",
	"experience_years",
	"current_ctc_lpa",
	"expected_ctc_lpa",
	"email",
	"next_round_availability",
	"communication_score",
	"technical_score",
	"overall_score",
	"interested",
	"call_status",
	"disconnection_reason",
}

const extractionSystemPrompt = `You are a data extraction assistant. Extract structured information from HR interview transcripts.

Extract the following fields into JSON format. Use null for fields not mentioned:
{
  "candidate_name": null,
  "current_company": null,
  "current_role": null,
  "desired_role": null,
  "domain": null,
  "notice_period": null,
  "current_location": null,
  "relocation_willing": null,
  "experience_years": null,
  "current_ctc_lpa": null,
  "expected_ctc_lpa": null,
  "email": null,
  "next_round_availability": null,
  "communication_score": null,
  "technical_score": null,
  "overall_score": null,
  "interested": null,
  "call_status": null,
  "disconnection_reason": null
}

Rules:
- Use null (not empty string) if field not mentioned
- For scores (1-10): evaluate based on responses, use null if can't determine
- communication_score: clarity, grammar, confidence
- technical_score: technical knowledge demonstrated
- overall_score: average of communication and technical
- interested: "yes" if candidate engaged, "no" if declined/not interested, null if unclear
- relocation_willing: "yes", "no", or null
- notice_period: extract as mentioned (e.g., "immediate", "30 days", "2 months")
- experience_years: extract as number string (e.g., "5", "3.5")
- CTC values: extract as number string in LPA (e.g., "12", "15.5")
- next_round_availability: extract date/time mentioned for next round (e.g., "Monday 10 AM", "Tomorrow 3 PM")
- call_status: "Completed", "Rescheduled", "Not Interested", "Screen Rejected", or "Disconnected"
- disconnection_reason: reason for call ending (e.g., "Candidate not looking for opportunity", "Domain not eligible", "Notice period exceeds requirement", "Location constraint", "Requested callback", "Candidate busy", "Call disconnected unexpectedly", "N/A" if completed normally)

Return ONLY valid JSON, no explanation.`

// Extractor turns a conversation transcript into a structured candidate
// profile. Extraction failures degrade to an all-null profile; the relay
// never loses a call record because the model was unreachable.
type Extractor interface {
	Extract(ctx context.Context, conversation []internal_session.Turn) map[string]any
}

type chatExtractor struct {
	logger     commons.Logger
	client     openai.Client
	model      string
	configured bool
}

// NewExtractor builds an extractor over the chat-completion API. Missing
// credentials leave it in degraded mode, where Extract always returns the
// all-null profile.
func NewExtractor(logger commons.Logger, cfg *config.AppConfig) Extractor {
	ex := &chatExtractor{
		logger: logger,
		model:  cfg.Extraction.Model,
	}
	if cfg.Extraction.ApiKey == "" {
		logger.Warn("extraction credentials not configured, profiles will be empty")
		return ex
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.Extraction.ApiKey)}
	if cfg.Extraction.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.Extraction.BaseURL))
	}
	ex.client = openai.NewClient(opts...)
	ex.configured = true
	return ex
}

// EmptyProfile returns the all-null candidate schema.
func EmptyProfile() map[string]any {
	profile := make(map[string]any, len(profileFields))
	for _, field := range profileFields {
		profile[field] = nil
	}
	return profile
}

// Extract runs the transcript through the model and returns the candidate
// profile. The result always carries the full field set.
func (ex *chatExtractor) Extract(ctx context.Context, conversation []internal_session.Turn) map[string]any {
	profile := EmptyProfile()
	if !ex.configured || len(conversation) == 0 {
		return profile
	}

	resp, err := ex.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(ex.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(extractionSystemPrompt),
			openai.UserMessage(fmt.Sprintf("Extract data from this interview:\n\n%s", transcriptText(conversation))),
		},
		Temperature: openai.Float(0),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		ex.logger.Errorf("extraction request failed: %v", err)
		return profile
	}
	if len(resp.Choices) == 0 {
		ex.logger.Error("extraction returned no choices")
		return profile
	}

	var extracted map[string]any
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &extracted); err != nil {
		ex.logger.Errorf("extraction returned invalid json: %v", err)
		return profile
	}
	for _, field := range profileFields {
		if value, ok := extracted[field]; ok {
			profile[field] = value
		}
	}
	return profile
}

func transcriptText(conversation []internal_session.Turn) string {
	var b strings.Builder
	for _, turn := range conversation {
		speaker := "Assistant"
		if turn.Role == internal_session.RoleUser {
			speaker = "Candidate"
		}
		fmt.Fprintf(&b, "%s: %s\n", speaker, turn.Text)
	}
	return b.String()
}
