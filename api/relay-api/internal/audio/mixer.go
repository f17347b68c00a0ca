// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_audio

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/zaf/g711"
)

const (
	AudioSampleRate     = 8000 // telephony native rate
	AudioChannels       = 1
	AudioBytesPerSample = 2  // LINEAR16 → 2 bytes per sample
	AudioBitsPerSample  = 16 // LINEAR16 → 16 bits per sample
	AudioPCMFormat      = 1  // WAV PCM format tag
)

// ErrNoAudio is returned when neither track carries any audio. The mixer
// never produces an empty recording.
var ErrNoAudio = errors.New("no audio data available")

// DecodeMulawTrack decodes a sequence of μ-law frames into one contiguous
// 16-bit little-endian linear PCM buffer. Frames arrive pre-validated (the
// relay drops undecodable base64 payloads before they reach this point), and
// every μ-law byte maps to a valid sample, so decoding cannot fail.
func DecodeMulawTrack(frames [][]byte) []byte {
	var pcm []byte
	for _, frame := range frames {
		if len(frame) == 0 {
			continue
		}
		pcm = append(pcm, g711.DecodeUlaw(frame)...)
	}
	return pcm
}

// MixTracks decodes both μ-law tracks and mixes them into a single mono
// linear PCM buffer.
func MixTracks(userFrames, agentFrames [][]byte) ([]byte, error) {
	return MixPCM(DecodeMulawTrack(userFrames), DecodeMulawTrack(agentFrames))
}

// MixPCM sums two 16-bit LE PCM buffers sample-by-sample with saturation.
// The shorter buffer is padded with silence up to the longer length, rounded
// up to an even byte count for sample alignment. A single non-empty track is
// returned as-is; two empty tracks yield ErrNoAudio.
func MixPCM(userPCM, agentPCM []byte) ([]byte, error) {
	switch {
	case len(userPCM) == 0 && len(agentPCM) == 0:
		return nil, ErrNoAudio
	case len(agentPCM) == 0:
		return padEven(userPCM), nil
	case len(userPCM) == 0:
		return padEven(agentPCM), nil
	}

	maxLen := len(userPCM)
	if len(agentPCM) > maxLen {
		maxLen = len(agentPCM)
	}
	if maxLen%2 != 0 {
		maxLen++
	}

	user := padTo(userPCM, maxLen)
	agent := padTo(agentPCM, maxLen)

	mixed := make([]byte, maxLen)
	for i := 0; i < maxLen; i += 2 {
		a := int32(int16(binary.LittleEndian.Uint16(user[i:])))
		b := int32(int16(binary.LittleEndian.Uint16(agent[i:])))
		sum := a + b
		if sum > 32767 {
			sum = 32767
		} else if sum < -32768 {
			sum = -32768
		}
		binary.LittleEndian.PutUint16(mixed[i:], uint16(int16(sum)))
	}
	return mixed, nil
}

func padEven(pcm []byte) []byte {
	if len(pcm)%2 == 0 {
		return pcm
	}
	return append(append([]byte{}, pcm...), 0)
}

func padTo(pcm []byte, length int) []byte {
	if len(pcm) >= length {
		return pcm[:length]
	}
	padded := make([]byte, length)
	copy(padded, pcm)
	return padded
}

// EncodeWAV wraps linear PCM in a standard RIFF/WAVE container:
// mono, 16-bit little-endian, 8000 Hz.
func EncodeWAV(pcmData []byte) []byte {
	var buf bytes.Buffer
	bps := AudioSampleRate * AudioChannels * AudioBytesPerSample

	buf.Write([]byte("RIFF"))
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcmData)))
	buf.Write([]byte("WAVE"))

	buf.Write([]byte("fmt "))
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(AudioPCMFormat))
	binary.Write(&buf, binary.LittleEndian, uint16(AudioChannels))
	binary.Write(&buf, binary.LittleEndian, uint32(AudioSampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(bps))
	binary.Write(&buf, binary.LittleEndian, uint16(AudioBytesPerSample))
	binary.Write(&buf, binary.LittleEndian, uint16(AudioBitsPerSample))

	// data chunk
	buf.Write([]byte("data"))
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcmData)))
	buf.Write(pcmData)

	return buf.Bytes()
}
