// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_audio

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pcmFromSamples(samples ...int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func samplesFromPCM(t *testing.T, pcm []byte) []int16 {
	t.Helper()
	require.Zero(t, len(pcm)%2, "PCM buffer must be sample aligned")
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}

// ============================================================================
// MixPCM
// ============================================================================

func TestMixPCM_EqualLengthSum(t *testing.T) {
	user := pcmFromSamples(100, -200, 3000)
	agent := pcmFromSamples(50, 200, -1000)

	mixed, err := MixPCM(user, agent)
	require.NoError(t, err)

	assert.Equal(t, len(user), len(mixed), "mixed length should equal input length")
	assert.Equal(t, []int16{150, 0, 2000}, samplesFromPCM(t, mixed))
}

func TestMixPCM_Saturation(t *testing.T) {
	user := pcmFromSamples(30000, -30000)
	agent := pcmFromSamples(30000, -30000)

	mixed, err := MixPCM(user, agent)
	require.NoError(t, err)

	assert.Equal(t, []int16{32767, -32768}, samplesFromPCM(t, mixed),
		"overflowing sums must clamp to the int16 range")
}

func TestMixPCM_ShorterTrackPaddedWithSilence(t *testing.T) {
	user := pcmFromSamples(10, 20, 30, 40)
	agent := pcmFromSamples(5)

	mixed, err := MixPCM(user, agent)
	require.NoError(t, err)

	assert.Equal(t, []int16{15, 20, 30, 40}, samplesFromPCM(t, mixed))
}

func TestMixPCM_OddLengthAlignedUp(t *testing.T) {
	user := []byte{0x01, 0x02, 0x03} // 3 bytes, not sample aligned
	agent := []byte{}

	mixed, err := MixPCM(user, agent)
	require.NoError(t, err)
	assert.Equal(t, 4, len(mixed), "output must round up to an even byte count")
	assert.Equal(t, byte(0), mixed[3])
}

func TestMixPCM_SingleTrackPassthrough(t *testing.T) {
	agent := pcmFromSamples(7, 8, 9)

	mixed, err := MixPCM(nil, agent)
	require.NoError(t, err)
	assert.Equal(t, agent, mixed, "a lone non-empty track is returned unchanged")

	mixed, err = MixPCM(agent, nil)
	require.NoError(t, err)
	assert.Equal(t, agent, mixed)
}

func TestMixPCM_NoAudio(t *testing.T) {
	_, err := MixPCM(nil, nil)
	assert.ErrorIs(t, err, ErrNoAudio)

	_, err = MixPCM([]byte{}, []byte{})
	assert.ErrorIs(t, err, ErrNoAudio)
}

// ============================================================================
// DecodeMulawTrack / MixTracks
// ============================================================================

func TestDecodeMulawTrack_ExpandsToLinear16(t *testing.T) {
	frames := [][]byte{{0xFF, 0x7F}, nil, {0x00}}

	pcm := DecodeMulawTrack(frames)
	assert.Equal(t, 6, len(pcm), "each μ-law byte expands to one 16-bit sample")

	samples := samplesFromPCM(t, pcm)
	assert.Equal(t, int16(0), samples[0], "0xFF decodes to zero amplitude")
	assert.NotEqual(t, int16(0), samples[2], "0x00 decodes to maximum magnitude")
}

func TestDecodeMulawTrack_Empty(t *testing.T) {
	assert.Empty(t, DecodeMulawTrack(nil))
	assert.Empty(t, DecodeMulawTrack([][]byte{{}, {}}))
}

func TestMixTracks_NoAudio(t *testing.T) {
	_, err := MixTracks(nil, nil)
	assert.ErrorIs(t, err, ErrNoAudio)
}

func TestMixTracks_MixesBothDirections(t *testing.T) {
	mixed, err := MixTracks([][]byte{{0xFF, 0xFF}}, [][]byte{{0xFF}})
	require.NoError(t, err)
	assert.Equal(t, 4, len(mixed))
}

// ============================================================================
// EncodeWAV
// ============================================================================

func TestEncodeWAV_Header(t *testing.T) {
	pcm := pcmFromSamples(1, 2, 3, 4)
	wav := EncodeWAV(pcm)

	require.Equal(t, 44+len(pcm), len(wav))
	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, "fmt ", string(wav[12:16]))
	assert.Equal(t, "data", string(wav[36:40]))

	assert.Equal(t, uint16(AudioPCMFormat), binary.LittleEndian.Uint16(wav[20:22]))
	assert.Equal(t, uint16(AudioChannels), binary.LittleEndian.Uint16(wav[22:24]))
	assert.Equal(t, uint32(AudioSampleRate), binary.LittleEndian.Uint32(wav[24:28]))
	assert.Equal(t, uint16(AudioBitsPerSample), binary.LittleEndian.Uint16(wav[34:36]))
	assert.Equal(t, uint32(len(pcm)), binary.LittleEndian.Uint32(wav[40:44]))
	assert.Equal(t, pcm, wav[44:])
}
