package orchestrator

import (
	"bytes"
	"io"
	"math"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

const defaultChunkMs = 20

// volumeEnvelope decodes audio into a uniform 20ms windowed-RMS sequence
// for client-side mouth-sync. wav and mp3 are decoded to PCM and measured
// directly; any other format (opus, flac, raw pcm without a header) falls
// back to a flat envelope sized from the reported duration, since the pack
// carries no decoder for those containers.
func volumeEnvelope(audio []byte, format string, durationMs int) []float64 {
	switch format {
	case "wav":
		if samples, sampleRate, channels, ok := decodeWAV(audio); ok {
			return rmsEnvelope(samples, sampleRate, channels, defaultChunkMs)
		}
	case "mp3":
		if samples, sampleRate, ok := decodeMP3(audio); ok {
			return rmsEnvelope(samples, sampleRate, 2, defaultChunkMs)
		}
	}
	return flatEnvelope(durationMs, defaultChunkMs)
}

func decodeWAV(audio []byte) (samples []int, sampleRate, channels int, ok bool) {
	dec := wav.NewDecoder(bytes.NewReader(audio))
	if !dec.IsValidFile() {
		return nil, 0, 0, false
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil || buf == nil {
		return nil, 0, 0, false
	}
	return buf.Data, buf.Format.SampleRate, buf.Format.NumChannels, true
}

func decodeMP3(audio []byte) (samples []int, sampleRate int, ok bool) {
	dec, err := mp3.NewDecoder(bytes.NewReader(audio))
	if err != nil {
		return nil, 0, false
	}
	raw, err := io.ReadAll(dec)
	if err != nil && len(raw) == 0 {
		return nil, 0, false
	}
	samples = make([]int, len(raw)/2)
	for i := range samples {
		lo, hi := raw[i*2], raw[i*2+1]
		samples[i] = int(int16(uint16(lo) | uint16(hi)<<8))
	}
	return samples, dec.SampleRate(), true
}

// rmsEnvelope computes one RMS magnitude per chunkMs window across all
// channels, averaged down to mono.
func rmsEnvelope(samples []int, sampleRate, channels, chunkMs int) []float64 {
	if sampleRate <= 0 || channels <= 0 || len(samples) == 0 {
		return nil
	}
	samplesPerChunk := (sampleRate * chunkMs / 1000) * channels
	if samplesPerChunk <= 0 {
		return nil
	}
	var envelope []float64
	for start := 0; start < len(samples); start += samplesPerChunk {
		end := start + samplesPerChunk
		if end > len(samples) {
			end = len(samples)
		}
		var sumSquares float64
		for _, s := range samples[start:end] {
			norm := float64(s) / 32768.0
			sumSquares += norm * norm
		}
		envelope = append(envelope, math.Sqrt(sumSquares/float64(end-start)))
	}
	return envelope
}

// flatEnvelope fabricates a constant-magnitude envelope spanning
// durationMs when the audio container can't be decoded for real RMS.
func flatEnvelope(durationMs, chunkMs int) []float64 {
	if durationMs <= 0 || chunkMs <= 0 {
		return nil
	}
	n := durationMs / chunkMs
	if n <= 0 {
		n = 1
	}
	envelope := make([]float64, n)
	for i := range envelope {
		envelope[i] = 0.5
	}
	return envelope
}
