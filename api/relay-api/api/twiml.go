// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package relay_api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/twilio/twilio-go/twiml"
)

// Voice answers the provider voice webhook with instructions that open the
// bidirectional media stream. Both inbound and freshly created outbound
// calls land here.
func (api *RelayApi) Voice(c *gin.Context) {
	stream := twiml.VoiceStream{
		Url: api.mediaStreamURL(),
	}
	connect := twiml.VoiceConnect{
		InnerElements: []twiml.Element{stream},
	}

	doc, err := twiml.Voice([]twiml.Element{connect})
	if err != nil {
		api.logger.Errorf("unable to render voice instructions: %v", err)
		c.String(http.StatusInternalServerError, "")
		return
	}
	api.respondXML(c, doc)
}

// Transfer bridges a redirected call to the human agent. The agent leg
// first hears the whisper briefing before the legs join.
func (api *RelayApi) Transfer(c *gin.Context) {
	callID := c.PostForm("CallSid")
	api.logger.Infof("transfer webhook: callId=%s", callID)

	if api.cfg.HumanAgentNumber == "" {
		say := &twiml.VoiceSay{
			Message: "I apologize, but human transfer is not available at the moment.",
		}
		doc, err := twiml.Voice([]twiml.Element{say})
		if err != nil {
			c.String(http.StatusInternalServerError, "")
			return
		}
		api.respondXML(c, doc)
		return
	}

	say := &twiml.VoiceSay{
		Message: "Transferring you to a human agent. Please hold.",
	}
	number := twiml.VoiceNumber{
		PhoneNumber: api.cfg.HumanAgentNumber,
		Url:         fmt.Sprintf("%s/whisper?original_call_sid=%s", api.cfg.ServerURL, callID),
	}
	dial := twiml.VoiceDial{
		Action:        fmt.Sprintf("%s/transfer-status?original_call_sid=%s", api.cfg.ServerURL, callID),
		Method:        "POST",
		InnerElements: []twiml.Element{number},
	}

	doc, err := twiml.Voice([]twiml.Element{say, dial})
	if err != nil {
		api.logger.Errorf("unable to render transfer instructions: %v", err)
		c.String(http.StatusInternalServerError, "")
		return
	}
	api.respondXML(c, doc)
}

// TransferStatus handles the dial outcome after a transfer attempt. A
// failed bridge apologizes and reconnects the caller to the assistant
// stream instead of dropping the call.
func (api *RelayApi) TransferStatus(c *gin.Context) {
	dialStatus := c.PostForm("DialCallStatus")
	callID := c.Query("original_call_sid")
	api.logger.Infof("transfer outcome: callId=%s, dialStatus=%s", callID, dialStatus)

	var elements []twiml.Element
	switch dialStatus {
	case "completed", "answered":
		// The human leg finished; nothing more to play.
	case "busy":
		elements = api.reconnectElements("I'm sorry, but the agent is currently busy. Let me continue to assist you.")
	case "no-answer":
		elements = api.reconnectElements("I'm sorry, but no one is available to take your call right now. Let me continue to help you.")
	default:
		elements = api.reconnectElements("I'm sorry, but I'm unable to transfer your call at this time. Let me continue to assist you.")
	}

	doc, err := twiml.Voice(elements)
	if err != nil {
		api.logger.Errorf("unable to render transfer outcome: %v", err)
		c.String(http.StatusInternalServerError, "")
		return
	}
	api.respondXML(c, doc)
}

func (api *RelayApi) reconnectElements(apology string) []twiml.Element {
	say := &twiml.VoiceSay{Message: apology}
	stream := twiml.VoiceStream{Url: api.mediaStreamURL()}
	connect := twiml.VoiceConnect{InnerElements: []twiml.Element{stream}}
	return []twiml.Element{say, connect}
}

// Whisper plays the pending briefing to the human agent before the bridge
// connects. The briefing is consumed on read; repeat fetches get the
// fallback sentence.
func (api *RelayApi) Whisper(c *gin.Context) {
	callID := c.Query("original_call_sid")
	sentence := api.briefings.Pop(callID)
	api.logger.Infof("whisper played: callId=%s", callID)

	say := &twiml.VoiceSay{Message: sentence}
	doc, err := twiml.Voice([]twiml.Element{say})
	if err != nil {
		api.logger.Errorf("unable to render whisper: %v", err)
		c.String(http.StatusInternalServerError, "")
		return
	}
	api.respondXML(c, doc)
}

func (api *RelayApi) respondXML(c *gin.Context, doc string) {
	c.Header("Content-Type", "text/xml")
	c.String(http.StatusOK, doc)
}
