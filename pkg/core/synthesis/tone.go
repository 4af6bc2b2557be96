package synthesis

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/replitone/replitone/pkg/core/types"
)

// ToneProvider is the built-in stand-in for a real TTS backend. Each voice
// renders speech as a pitched tone whose length tracks the text, so playback
// timing and voice consistency are observable without any external service.
type ToneProvider struct {
	SampleRate int
	// Latency simulates backend processing time per request.
	Latency time.Duration

	voices []Voice
}

// NewToneProvider creates a tone provider with the default voice catalog.
func NewToneProvider(sampleRate int) *ToneProvider {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &ToneProvider{
		SampleRate: sampleRate,
		voices: []Voice{
			{ID: "tone-default", Name: "Default"},
			{ID: "tone-amber", Name: "Amber"},
			{ID: "tone-birch", Name: "Birch"},
			{ID: "tone-cedar", Name: "Cedar"},
			{ID: "tone-dahlia", Name: "Dahlia"},
			{ID: "tone-ember", Name: "Ember"},
		},
	}
}

// Name returns the provider identifier.
func (p *ToneProvider) Name() string { return "tone" }

// Voices returns the selectable voice catalog.
func (p *ToneProvider) Voices() []Voice {
	out := make([]Voice, len(p.voices))
	copy(out, p.voices)
	return out
}

// Render produces a PCM-16 WAV tone for the text. Pitch is fixed per voice;
// duration scales with text length, capped at ten seconds.
func (p *ToneProvider) Render(ctx context.Context, text string, voice Voice) (types.AudioPayload, error) {
	if p.Latency > 0 {
		select {
		case <-time.After(p.Latency):
		case <-ctx.Done():
			return types.AudioPayload{}, ctx.Err()
		}
	}

	idx := 0
	for i, v := range p.voices {
		if v.ID == voice.ID {
			idx = i
			break
		}
	}
	freq := 160.0 + 36.0*float64(idx)

	// Roughly 55ms of audio per character, like unhurried speech.
	dur := time.Duration(len([]rune(text))) * 55 * time.Millisecond
	if dur < 300*time.Millisecond {
		dur = 300 * time.Millisecond
	}
	if dur > 10*time.Second {
		dur = 10 * time.Second
	}

	n := int(float64(p.SampleRate) * dur.Seconds())
	samples := make([]int16, n)
	for i := range samples {
		t := float64(i) / float64(p.SampleRate)
		// Gentle fade in/out to avoid clicks at the edges.
		env := 1.0
		edge := float64(p.SampleRate) / 50
		if float64(i) < edge {
			env = float64(i) / edge
		} else if float64(n-i) < edge {
			env = float64(n-i) / edge
		}
		samples[i] = int16(9000 * env * math.Sin(2*math.Pi*freq*t))
	}

	data, err := EncodeWAV(samples, p.SampleRate)
	if err != nil {
		return types.AudioPayload{}, err
	}
	return types.AudioPayload{Kind: types.AudioSynthesized, Data: data}, nil
}

type wavHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32
}

// EncodeWAV encodes mono PCM-16 samples into a WAV container.
func EncodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("cannot encode empty audio samples")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	dataSize := uint32(len(samples) * 2)
	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1, // PCM
		NumChannels:   1,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * 2),
		BlockAlign:    2,
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("write WAV header: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("write WAV data: %w", err)
	}
	return buf.Bytes(), nil
}
