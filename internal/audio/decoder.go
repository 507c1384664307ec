package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os/exec"

	"github.com/dooshek/polyvoice/internal/logger"
	"github.com/dooshek/polyvoice/internal/types"
	gowav "github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

var ErrFFmpegNotInstalled = fmt.Errorf("FFmpeg is not installed. Please install FFmpeg to decode compressed audio")

func init() {
	ffmpeg.LogCompiledCommand = false
}

func checkFFmpegInstalled() error {
	cmd := exec.Command("ffmpeg", "-version")
	if err := cmd.Run(); err != nil {
		return ErrFFmpegNotInstalled
	}
	return nil
}

// Decoded is linear PCM with one float slice per channel
type Decoded struct {
	Samples    [][]float32
	SampleRate int
}

// Frames returns the number of samples per channel
func (d *Decoded) Frames() int {
	if len(d.Samples) == 0 {
		return 0
	}
	return len(d.Samples[0])
}

// Seconds returns the decoded duration
func (d *Decoded) Seconds() float64 {
	if d.SampleRate == 0 {
		return 0
	}
	return float64(d.Frames()) / float64(d.SampleRate)
}

// Decoder turns an arbitrary recorded container into float samples. PCM WAV
// and MP3 are decoded in-process; everything else goes through ffmpeg at the
// configured rate and channel count.
type Decoder struct {
	sampleRate int
	channels   int
	// ffmpeg is swapped out in tests
	ffmpeg func(ctx context.Context, data []byte, sampleRate, channels int) ([]byte, error)
}

func NewDecoder(cfg types.AudioConfig) *Decoder {
	if cfg.DecodeSampleRate <= 0 {
		cfg.DecodeSampleRate = 24000
	}
	if cfg.DecodeChannels <= 0 {
		cfg.DecodeChannels = 1
	}
	return &Decoder{
		sampleRate: cfg.DecodeSampleRate,
		channels:   cfg.DecodeChannels,
		ffmpeg:     ffmpegToF32LE,
	}
}

func (d *Decoder) Decode(ctx context.Context, data []byte) (*Decoded, error) {
	if len(data) == 0 {
		return nil, types.NewConversionError("empty audio input", nil)
	}

	switch {
	case isWAV(data):
		decoded, err := decodeWAV(data)
		if err == nil {
			return decoded, nil
		}
		// float or compressed WAV payloads are left to ffmpeg
		logger.Debugf("In-process WAV decode failed, trying ffmpeg: %v", err)

	case isMP3(data):
		decoded, err := decodeMP3(data)
		if err == nil {
			return decoded, nil
		}
		logger.Debugf("In-process MP3 decode failed, trying ffmpeg: %v", err)
	}

	raw, err := d.ffmpeg(ctx, data, d.sampleRate, d.channels)
	if err != nil {
		return nil, types.NewConversionError("ffmpeg decode", err)
	}

	samples, err := deinterleaveF32LE(raw, d.channels)
	if err != nil {
		return nil, err
	}
	return &Decoded{Samples: samples, SampleRate: d.sampleRate}, nil
}

func isWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

func isMP3(data []byte) bool {
	if len(data) >= 3 && string(data[0:3]) == "ID3" {
		return true
	}
	// MPEG audio frame sync
	return len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0
}

func decodeWAV(data []byte) (*Decoded, error) {
	dec := gowav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, errors.New("not a valid WAV file")
	}
	if dec.WavAudioFormat != 1 {
		return nil, fmt.Errorf("unsupported WAV format %d", dec.WavAudioFormat)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("error reading PCM data: %w", err)
	}

	channels := buf.Format.NumChannels
	if channels <= 0 {
		return nil, errors.New("WAV has no channels")
	}
	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = int(dec.BitDepth)
	}
	scale := float32(math.Pow(2, float64(bitDepth-1)))
	// 8-bit WAV is unsigned
	offset := 0
	if bitDepth == 8 {
		offset = 128
	}

	frames := len(buf.Data) / channels
	samples := make([][]float32, channels)
	for ch := range samples {
		samples[ch] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			samples[ch][i] = float32(buf.Data[i*channels+ch]-offset) / scale
		}
	}

	return &Decoded{Samples: samples, SampleRate: buf.Format.SampleRate}, nil
}

// go-mp3 always produces 16-bit little-endian stereo
func decodeMP3(data []byte) (*Decoded, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("error reading MP3 frames: %w", err)
	}

	const channels = 2
	frames := len(pcm) / (channels * 2)
	samples := [][]float32{make([]float32, frames), make([]float32, frames)}
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			s := int16(binary.LittleEndian.Uint16(pcm[(i*channels+ch)*2:]))
			samples[ch][i] = float32(s) / 32768
		}
	}

	return &Decoded{Samples: samples, SampleRate: dec.SampleRate()}, nil
}

func ffmpegToF32LE(ctx context.Context, data []byte, sampleRate, channels int) ([]byte, error) {
	if err := checkFFmpegInstalled(); err != nil {
		return nil, err
	}

	var out, stderr bytes.Buffer
	cmd := ffmpeg.Input("pipe:0").
		Output("pipe:1", ffmpeg.KwArgs{
			"f":        "f32le",
			"acodec":   "pcm_f32le",
			"ac":       channels,
			"ar":       sampleRate,
			"loglevel": "error",
		}).
		WithInput(bytes.NewReader(data)).
		WithOutput(&out, &stderr).
		Compile()

	if err := runCommand(ctx, cmd); err != nil {
		return nil, fmt.Errorf("%w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}
	if out.Len() == 0 {
		return nil, errors.New("ffmpeg produced no audio")
	}
	return out.Bytes(), nil
}

// runCommand runs cmd and kills it when ctx is done
func runCommand(ctx context.Context, cmd *exec.Cmd) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if err := cmd.Process.Kill(); err != nil {
			logger.Debugf("Failed to kill ffmpeg: %v", err)
		}
		<-done
		return ctx.Err()
	}
}

func deinterleaveF32LE(raw []byte, channels int) ([][]float32, error) {
	frameSize := channels * 4
	if len(raw)%frameSize != 0 {
		return nil, types.NewConversionError(fmt.Sprintf("%d bytes is not a whole number of %d-channel frames", len(raw), channels), nil)
	}

	frames := len(raw) / frameSize
	samples := make([][]float32, channels)
	for ch := range samples {
		samples[ch] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			bits := binary.LittleEndian.Uint32(raw[(i*channels+ch)*4:])
			samples[ch][i] = math.Float32frombits(bits)
		}
	}
	return samples, nil
}
