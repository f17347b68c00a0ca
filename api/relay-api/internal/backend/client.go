// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_backend

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/rapidaai/callbridge/pkg/commons"
)

// Call type labels reported with lifecycle updates.
const (
	CallTypeInbound  = "inbound"
	CallTypeOutbound = "outbound"
)

// StatusUpdate is the lifecycle payload posted to the recruitment backend.
type StatusUpdate struct {
	CallID      string `json:"callSid"`
	Status      string `json:"status"`
	PhoneNumber string `json:"phoneNumber"`
	CallType    string `json:"callType"`
}

// CallData is the post-call payload: the screened candidate profile plus
// transcript metadata.
type CallData struct {
	CallID      string         `json:"callSid"`
	PhoneNumber string         `json:"phoneNumber"`
	StartedAt   time.Time      `json:"startedAt"`
	EndedAt     time.Time      `json:"endedAt"`
	Transferred bool           `json:"transferred"`
	Candidate   map[string]any `json:"candidate"`
}

// NotifierClient reports call lifecycle and outcomes to the recruitment
// backend. All calls are best effort; the relay never blocks on the backend.
type NotifierClient interface {
	NotifyStatus(ctx context.Context, update StatusUpdate) error
	SendCallData(ctx context.Context, data CallData) error
	Enabled() bool
}

type notifierClient struct {
	logger  commons.Logger
	client  *resty.Client
	baseURL string
}

// NewNotifierClient builds a backend notifier. An empty baseURL disables
// notification; callers can check Enabled and skip the round trip.
func NewNotifierClient(logger commons.Logger, baseURL string) NotifierClient {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	return &notifierClient{
		logger:  logger,
		client:  client,
		baseURL: baseURL,
	}
}

func (n *notifierClient) Enabled() bool {
	return n.baseURL != ""
}

// NotifyStatus posts one lifecycle transition.
func (n *notifierClient) NotifyStatus(ctx context.Context, update StatusUpdate) error {
	if !n.Enabled() {
		return nil
	}
	resp, err := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(update).
		Post(fmt.Sprintf("%s/api/calls/status", n.baseURL))
	if err != nil {
		return fmt.Errorf("unable to notify call status: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("backend rejected status update: %s", resp.Status())
	}
	n.logger.Debugf("status notified: callId=%s, status=%s", update.CallID, update.Status)
	return nil
}

// SendCallData posts the post-call candidate profile.
func (n *notifierClient) SendCallData(ctx context.Context, data CallData) error {
	if !n.Enabled() {
		return nil
	}
	resp, err := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(data).
		Post(fmt.Sprintf("%s/api/calls/data", n.baseURL))
	if err != nil {
		return fmt.Errorf("unable to send call data: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("backend rejected call data: %s", resp.Status())
	}
	n.logger.Debugf("call data sent: callId=%s", data.CallID)
	return nil
}
