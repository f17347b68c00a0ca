// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package relay_api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rapidaai/callbridge/api/relay-api/internal/backend"
	"github.com/rapidaai/callbridge/api/relay-api/internal/callrecord"
	"github.com/rapidaai/callbridge/pkg/utils"
)

type outboundCallRequest struct {
	PhoneNumber string `json:"phone_number" form:"phone_number" binding:"required"`
}

// OutboundCall dials a screening call to the given number and remembers
// the number so the media stream can resolve it on start.
func (api *RelayApi) OutboundCall(c *gin.Context) {
	var req outboundCallRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "phone_number is required"})
		return
	}

	callID, err := api.callControl.CreateCall(req.PhoneNumber)
	if err != nil {
		api.logger.Errorf("outbound call failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": err.Error()})
		return
	}

	api.pendingCalls.Set(callID, req.PhoneNumber)

	record := &internal_callrecord.CallRecord{
		CallID:      callID,
		PhoneNumber: req.PhoneNumber,
		Direction:   internal_callrecord.DirectionOutbound,
		Status:      internal_backend.StatusInitiated,
	}
	if err := api.records.Save(c.Request.Context(), record); err != nil {
		api.logger.Warnf("unable to save outbound call record: %v", err)
	}

	api.notifyStatusAsync(callID, internal_backend.StatusInitiated, req.PhoneNumber, internal_backend.CallTypeOutbound)

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"call_sid":     callID,
		"phone_number": req.PhoneNumber,
	})
}

// Status receives provider lifecycle callbacks, maps them onto the
// canonical status set and fans them out to the record store and backend.
func (api *RelayApi) Status(c *gin.Context) {
	callID := c.PostForm("CallSid")
	providerStatus := c.PostForm("CallStatus")
	toNumber := c.PostForm("To")
	if callID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "CallSid is required"})
		return
	}

	status := internal_backend.MapProviderStatus(providerStatus)
	api.logger.Infof("status callback: callId=%s, provider=%s, mapped=%s", callID, providerStatus, status)

	if err := api.records.UpdateStatus(c.Request.Context(), callID, status); err != nil {
		api.logger.Warnf("unable to persist status for call %s: %v", callID, err)
	}

	callType := internal_backend.CallTypeInbound
	if _, ok := api.pendingCalls.Get(callID); ok {
		callType = internal_backend.CallTypeOutbound
	}
	api.notifyStatusAsync(callID, status, toNumber, callType)

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Calls lists the most recent call records.
func (api *RelayApi) Calls(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	records, err := api.records.Recent(c.Request.Context(), limit)
	if err != nil {
		api.logger.Errorf("unable to list call records: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "calls": records})
}

func (api *RelayApi) notifyStatusAsync(callID, status, phone, callType string) {
	utils.Go(context.Background(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := api.notifier.NotifyStatus(ctx, internal_backend.StatusUpdate{
			CallID:      callID,
			Status:      status,
			PhoneNumber: phone,
			CallType:    callType,
		}); err != nil {
			api.logger.Warnf("status notification failed: callId=%s, status=%s, err=%v", callID, status, err)
		}
	})
}
