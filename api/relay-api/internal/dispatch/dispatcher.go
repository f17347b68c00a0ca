// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rapidaai/callbridge/api/relay-api/internal/audio"
	"github.com/rapidaai/callbridge/api/relay-api/internal/backend"
	"github.com/rapidaai/callbridge/api/relay-api/internal/callrecord"
	"github.com/rapidaai/callbridge/api/relay-api/internal/extraction"
	"github.com/rapidaai/callbridge/api/relay-api/internal/session"
	"github.com/rapidaai/callbridge/pkg/commons"
	"github.com/rapidaai/callbridge/pkg/utils"
)

// Dispatcher runs the post-call pipeline for a finished session: mix and
// persist the recording, extract the candidate profile, write transcript
// artifacts, finalize the durable record, and notify the backend. Every
// step is independent; one failing never stops the others, because a lost
// recording must not cost the transcript and vice versa.
type Dispatcher struct {
	logger        commons.Logger
	recordingsDir string
	extractor     internal_extraction.Extractor
	records       internal_callrecord.Store
	notifier      internal_backend.NotifierClient
}

// NewDispatcher wires the post-call pipeline.
func NewDispatcher(
	logger commons.Logger,
	recordingsDir string,
	extractor internal_extraction.Extractor,
	records internal_callrecord.Store,
	notifier internal_backend.NotifierClient,
) *Dispatcher {
	return &Dispatcher{
		logger:        logger,
		recordingsDir: recordingsDir,
		extractor:     extractor,
		records:       records,
		notifier:      notifier,
	}
}

// DispatchAsync runs Dispatch on a background routine so the socket
// teardown path never waits on disk, the model, or the backend.
func (d *Dispatcher) DispatchAsync(ctx context.Context, sum internal_session.Summary, direction string) {
	// The relay's own context is usually already canceled by teardown, so
	// the pipeline runs detached from it.
	utils.Go(context.Background(), func() {
		d.Dispatch(context.WithoutCancel(ctx), sum, direction)
	})
}

// Dispatch runs the pipeline synchronously. Sessions without enough data
// (no transcript, no call identifier, unresolved number) are skipped whole.
func (d *Dispatcher) Dispatch(ctx context.Context, sum internal_session.Summary, direction string) {
	if !sum.Dispatchable() {
		d.logger.Infof("skipping post-call dispatch: callId=%s, turns=%d", sum.CallID, len(sum.Conversation))
		return
	}
	d.logger.Infof("post-call dispatch started: callId=%s, turns=%d", sum.CallID, len(sum.Conversation))

	recordingPath := d.writeRecording(sum)
	profile := d.extractor.Extract(ctx, sum.Conversation)
	transcriptPath := d.writeTranscript(sum, profile)
	d.writeUserData(sum, profile)
	d.finalizeRecord(ctx, sum, direction, profile, recordingPath, transcriptPath)
	d.notifyBackend(ctx, sum, direction, profile)

	d.logger.Infof("post-call dispatch finished: callId=%s", sum.CallID)
}

// writeRecording mixes both audio tracks and writes the WAV artifact.
// Returns the path, or empty when the call produced no audio or the write
// failed.
func (d *Dispatcher) writeRecording(sum internal_session.Summary) string {
	pcm, err := internal_audio.MixTracks(sum.UserAudio, sum.AgentAudio)
	if err != nil {
		d.logger.Warnf("no recording for call %s: %v", sum.CallID, err)
		return ""
	}
	if err := os.MkdirAll(d.recordingsDir, 0o755); err != nil {
		d.logger.Errorf("unable to create recordings directory: %v", err)
		return ""
	}
	path := filepath.Join(d.recordingsDir, fmt.Sprintf("%s.wav", sum.CallID))
	if err := os.WriteFile(path, internal_audio.EncodeWAV(pcm), 0o644); err != nil {
		d.logger.Errorf("unable to write recording for call %s: %v", sum.CallID, err)
		return ""
	}
	d.logger.Infof("recording saved: callId=%s, path=%s", sum.CallID, path)
	return path
}

type transcriptArtifact struct {
	CallID       string                  `json:"callSid"`
	PhoneNumber  string                  `json:"phoneNumber"`
	StartedAt    string                  `json:"startedAt"`
	EndedAt      string                  `json:"endedAt"`
	Transferred  bool                    `json:"transferred"`
	Conversation []internal_session.Turn `json:"conversation"`
	UserData     map[string]any          `json:"userData"`
}

// writeTranscript writes the transcript and extracted profile artifact.
func (d *Dispatcher) writeTranscript(sum internal_session.Summary, profile map[string]any) string {
	if err := os.MkdirAll(d.recordingsDir, 0o755); err != nil {
		d.logger.Errorf("unable to create recordings directory: %v", err)
		return ""
	}
	artifact := transcriptArtifact{
		CallID:       sum.CallID,
		PhoneNumber:  sum.PhoneNumber,
		StartedAt:    sum.StartedAt.UTC().Format("2006-01-02T15:04:05Z"),
		EndedAt:      sum.EndedAt.UTC().Format("2006-01-02T15:04:05Z"),
		Transferred:  sum.TransferRequested,
		Conversation: sum.Conversation,
		UserData:     profile,
	}
	payload, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		d.logger.Errorf("unable to encode transcript for call %s: %v", sum.CallID, err)
		return ""
	}
	path := filepath.Join(d.recordingsDir, fmt.Sprintf("%s_transcript.json", sum.CallID))
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		d.logger.Errorf("unable to write transcript for call %s: %v", sum.CallID, err)
		return ""
	}
	d.logger.Infof("transcript saved: callId=%s, path=%s", sum.CallID, path)
	return path
}

// writeUserData writes the extracted profile alone, for consumers that do
// not want the full transcript.
func (d *Dispatcher) writeUserData(sum internal_session.Summary, profile map[string]any) {
	payload, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		d.logger.Errorf("unable to encode user data for call %s: %v", sum.CallID, err)
		return
	}
	path := filepath.Join(d.recordingsDir, fmt.Sprintf("%s_data.json", sum.CallID))
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		d.logger.Errorf("unable to write user data for call %s: %v", sum.CallID, err)
		return
	}
	d.logger.Infof("user data saved: callId=%s, path=%s", sum.CallID, path)
}

func (d *Dispatcher) finalizeRecord(ctx context.Context, sum internal_session.Summary, direction string, profile map[string]any, recordingPath, transcriptPath string) {
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		d.logger.Errorf("unable to encode profile for call %s: %v", sum.CallID, err)
		profileJSON = []byte("{}")
	}
	record := &internal_callrecord.CallRecord{
		CallID:          sum.CallID,
		PhoneNumber:     sum.PhoneNumber,
		Direction:       direction,
		Transferred:     sum.TransferRequested,
		StartedAt:       sum.StartedAt,
		EndedAt:         sum.EndedAt,
		DurationSeconds: int(sum.EndedAt.Sub(sum.StartedAt).Seconds()),
		RecordingPath:   recordingPath,
		TranscriptPath:  transcriptPath,
		ProfileJSON:     string(profileJSON),
	}
	if err := d.records.Finalize(ctx, record); err != nil {
		d.logger.Errorf("unable to finalize record for call %s: %v", sum.CallID, err)
	}
}

func (d *Dispatcher) notifyBackend(ctx context.Context, sum internal_session.Summary, direction string, profile map[string]any) {
	err := d.notifier.SendCallData(ctx, internal_backend.CallData{
		CallID:      sum.CallID,
		PhoneNumber: sum.PhoneNumber,
		StartedAt:   sum.StartedAt,
		EndedAt:     sum.EndedAt,
		Transferred: sum.TransferRequested,
		Candidate:   profile,
	})
	if err != nil {
		d.logger.Errorf("unable to notify backend for call %s: %v", sum.CallID, err)
	}
}
