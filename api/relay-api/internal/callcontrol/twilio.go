// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_callcontrol

import (
	"fmt"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/rapidaai/callbridge/config"
	"github.com/rapidaai/callbridge/pkg/commons"
)

// CallController drives live calls on the telephony provider: dialing
// outbound screening calls, redirecting an in-progress call to a human
// agent, and hanging up.
type CallController interface {
	CreateCall(toNumber string) (string, error)
	Redirect(callID string) error
	Terminate(callID string) error
}

type twilioCallController struct {
	logger    commons.Logger
	client    *twilio.RestClient
	from      string
	serverURL string
}

// NewTwilioCallController builds a controller over the provider REST API.
// serverURL is this service's public base URL; the provider fetches call
// instructions from it.
func NewTwilioCallController(logger commons.Logger, cfg *config.AppConfig) (CallController, error) {
	if cfg.Twilio.AccountSid == "" || cfg.Twilio.AuthToken == "" {
		return nil, fmt.Errorf("telephony credentials are not configured")
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.Twilio.AccountSid,
		Password: cfg.Twilio.AuthToken,
	})
	return &twilioCallController{
		logger:    logger,
		client:    client,
		from:      cfg.Twilio.PhoneNumber,
		serverURL: cfg.ServerURL,
	}, nil
}

// CreateCall dials toNumber from the configured service number and returns
// the provider call identifier. The call fetches its instructions from the
// voice webhook and reports lifecycle transitions to the status webhook.
func (c *twilioCallController) CreateCall(toNumber string) (string, error) {
	params := &openapi.CreateCallParams{}
	params.SetTo(toNumber)
	params.SetFrom(c.from)
	params.SetUrl(fmt.Sprintf("%s/voice", c.serverURL))
	params.SetStatusCallback(fmt.Sprintf("%s/status", c.serverURL))
	params.SetStatusCallbackEvent([]string{"initiated", "ringing", "answered", "completed"})
	params.SetStatusCallbackMethod("POST")

	resp, err := c.client.Api.CreateCall(params)
	if err != nil {
		return "", fmt.Errorf("unable to create call to %s: %w", toNumber, err)
	}
	if resp.Sid == nil {
		return "", fmt.Errorf("provider returned call without an identifier")
	}
	c.logger.Infof("outbound call created: callId=%s, to=%s", *resp.Sid, toNumber)
	return *resp.Sid, nil
}

// Redirect points a live call at the transfer webhook, which bridges it to
// the human agent. The caller rolls back the session transfer latch if this
// fails.
func (c *twilioCallController) Redirect(callID string) error {
	params := &openapi.UpdateCallParams{}
	params.SetUrl(fmt.Sprintf("%s/transfer", c.serverURL))
	params.SetMethod("POST")

	if _, err := c.client.Api.UpdateCall(callID, params); err != nil {
		return fmt.Errorf("unable to redirect call %s: %w", callID, err)
	}
	c.logger.Infof("call redirected for transfer: callId=%s", callID)
	return nil
}

// Terminate hangs up a live call. Used after the grace period once the
// conversation has reached a natural close.
func (c *twilioCallController) Terminate(callID string) error {
	params := &openapi.UpdateCallParams{}
	params.SetStatus("completed")

	if _, err := c.client.Api.UpdateCall(callID, params); err != nil {
		return fmt.Errorf("unable to terminate call %s: %w", callID, err)
	}
	c.logger.Infof("call terminated: callId=%s", callID)
	return nil
}
