// Package wav writes and reads canonical 44-byte-header PCM WAV documents.
package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/dooshek/polyvoice/internal/types"
)

const (
	// HeaderSize is the size of the canonical RIFF/WAVE header.
	HeaderSize = 44

	formatPCM      = 1
	bitsPerSample  = 16
	bytesPerSample = bitsPerSample / 8
)

// ErrInvalidHeader is returned by ParseHeader for anything that is not a
// canonical 16-bit PCM WAV header.
var ErrInvalidHeader = errors.New("invalid WAV header")

// Header holds the fields of a canonical WAV header.
type Header struct {
	ChunkSize     uint32
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	DataSize      uint32
}

// EncodeFloat32 converts per-channel float samples into a WAV document.
// Samples are clamped to [-1, 1], scaled by 32767 and truncated. Frames are
// interleaved channel by channel.
func EncodeFloat32(samples [][]float32, sampleRate int) ([]byte, error) {
	channels := len(samples)
	if channels == 0 {
		return nil, types.NewConversionError("no channel data", nil)
	}
	if sampleRate <= 0 {
		return nil, types.NewConversionError(fmt.Sprintf("invalid sample rate %d", sampleRate), nil)
	}

	frames := len(samples[0])
	for ch := 1; ch < channels; ch++ {
		if len(samples[ch]) != frames {
			return nil, types.NewConversionError(
				fmt.Sprintf("channel %d has %d samples, channel 0 has %d", ch, len(samples[ch]), frames), nil)
		}
	}

	dataSize := frames * channels * bytesPerSample
	out := make([]byte, HeaderSize+dataSize)
	writeHeader(out, channels, sampleRate, dataSize)

	offset := HeaderSize
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			binary.LittleEndian.PutUint16(out[offset:], uint16(quantize(samples[ch][i])))
			offset += bytesPerSample
		}
	}

	return out, nil
}

// ConvertPCMToWAV wraps interleaved S16LE PCM with a WAV header.
func ConvertPCMToWAV(pcmData []byte, channels int, sampleRate int) ([]byte, error) {
	if channels <= 0 {
		return nil, types.NewConversionError(fmt.Sprintf("invalid channel count %d", channels), nil)
	}
	if len(pcmData)%(channels*bytesPerSample) != 0 {
		return nil, types.NewConversionError(
			fmt.Sprintf("pcm length %d is not a multiple of the frame size", len(pcmData)), nil)
	}

	var buffer bytes.Buffer
	buffer.Grow(HeaderSize + len(pcmData))

	header := make([]byte, HeaderSize)
	writeHeader(header, channels, sampleRate, len(pcmData))
	buffer.Write(header)
	buffer.Write(pcmData)

	return buffer.Bytes(), nil
}

// ParseHeader reads and validates the first 44 bytes of a WAV document.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrInvalidHeader, len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" ||
		string(data[12:16]) != "fmt " || string(data[36:40]) != "data" {
		return Header{}, fmt.Errorf("%w: missing chunk ids", ErrInvalidHeader)
	}

	le := binary.LittleEndian
	h := Header{
		ChunkSize:     le.Uint32(data[4:8]),
		AudioFormat:   le.Uint16(data[20:22]),
		Channels:      le.Uint16(data[22:24]),
		SampleRate:    le.Uint32(data[24:28]),
		ByteRate:      le.Uint32(data[28:32]),
		BlockAlign:    le.Uint16(data[32:34]),
		BitsPerSample: le.Uint16(data[34:36]),
		DataSize:      le.Uint32(data[40:44]),
	}
	if le.Uint32(data[16:20]) != 16 || h.AudioFormat != formatPCM {
		return Header{}, fmt.Errorf("%w: not PCM", ErrInvalidHeader)
	}
	return h, nil
}

func writeHeader(dst []byte, channels, sampleRate, dataSize int) {
	le := binary.LittleEndian

	// RIFF chunk
	copy(dst[0:4], "RIFF")
	le.PutUint32(dst[4:8], uint32(36+dataSize))
	copy(dst[8:12], "WAVE")

	// "fmt " chunk
	copy(dst[12:16], "fmt ")
	le.PutUint32(dst[16:20], 16)
	le.PutUint16(dst[20:22], formatPCM)
	le.PutUint16(dst[22:24], uint16(channels))
	le.PutUint32(dst[24:28], uint32(sampleRate))
	le.PutUint32(dst[28:32], uint32(sampleRate*channels*bytesPerSample))
	le.PutUint16(dst[32:34], uint16(channels*bytesPerSample))
	le.PutUint16(dst[34:36], bitsPerSample)

	// "data" chunk
	copy(dst[36:40], "data")
	le.PutUint32(dst[40:44], uint32(dataSize))
}

func quantize(s float32) int16 {
	v := float64(s)
	if math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	return int16(v * math.MaxInt16)
}
