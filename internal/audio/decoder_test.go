package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os/exec"
	"testing"
	"time"

	"github.com/dooshek/polyvoice/internal/types"
	"github.com/dooshek/polyvoice/pkg/wav"
)

func newTestDecoder(ffmpegFn func(ctx context.Context, data []byte, sampleRate, channels int) ([]byte, error)) *Decoder {
	d := NewDecoder(types.AudioConfig{DecodeSampleRate: 16000, DecodeChannels: 1})
	d.ffmpeg = ffmpegFn
	return d
}

func noFFmpeg(t *testing.T) func(context.Context, []byte, int, int) ([]byte, error) {
	return func(context.Context, []byte, int, int) ([]byte, error) {
		t.Error("ffmpeg should not be called")
		return nil, errors.New("unexpected ffmpeg call")
	}
}

func TestDecodeWAVRoundTrip(t *testing.T) {
	left := []float32{0, 0.5, -0.5, 0.25}
	right := []float32{0.1, -0.1, 0.9, -0.9}
	doc, err := wav.EncodeFloat32([][]float32{left, right}, 22050)
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := newTestDecoder(noFFmpeg(t)).Decode(context.Background(), doc)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if decoded.SampleRate != 22050 {
		t.Errorf("SampleRate = %d, want 22050", decoded.SampleRate)
	}
	if len(decoded.Samples) != 2 || decoded.Frames() != len(left) {
		t.Fatalf("got %d channels x %d frames", len(decoded.Samples), decoded.Frames())
	}
	for i := range left {
		if math.Abs(float64(decoded.Samples[0][i]-left[i])) > 1e-3 {
			t.Errorf("left[%d] = %f, want %f", i, decoded.Samples[0][i], left[i])
		}
		if math.Abs(float64(decoded.Samples[1][i]-right[i])) > 1e-3 {
			t.Errorf("right[%d] = %f, want %f", i, decoded.Samples[1][i], right[i])
		}
	}
}

func TestDecodeFallsBackToFFmpeg(t *testing.T) {
	var gotRate, gotChannels int
	raw := make([]byte, 3*4)
	for i, v := range []float32{0.25, -0.5, 1} {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}

	d := newTestDecoder(func(_ context.Context, _ []byte, sampleRate, channels int) ([]byte, error) {
		gotRate, gotChannels = sampleRate, channels
		return raw, nil
	})

	// webm/EBML magic
	decoded, err := d.Decode(context.Background(), []byte{0x1A, 0x45, 0xDF, 0xA3, 0, 0})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if gotRate != 16000 || gotChannels != 1 {
		t.Errorf("ffmpeg called with %d Hz, %d ch", gotRate, gotChannels)
	}
	if decoded.SampleRate != 16000 || decoded.Frames() != 3 {
		t.Fatalf("decoded %d Hz, %d frames", decoded.SampleRate, decoded.Frames())
	}
	if decoded.Samples[0][1] != -0.5 {
		t.Errorf("sample 1 = %f, want -0.5", decoded.Samples[0][1])
	}
}

func TestDecodeErrorsAreConversionErrors(t *testing.T) {
	failing := newTestDecoder(func(context.Context, []byte, int, int) ([]byte, error) {
		return nil, errors.New("ffmpeg exploded")
	})

	tests := []struct {
		name string
		dec  *Decoder
		data []byte
	}{
		{"empty input", failing, nil},
		{"ffmpeg failure", failing, []byte("not audio at all")},
		{"partial frame", newTestDecoder(func(context.Context, []byte, int, int) ([]byte, error) {
			return []byte{1, 2, 3}, nil
		}), []byte("OggS....")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.dec.Decode(context.Background(), tt.data)
			if !errors.Is(err, types.ErrConversion) {
				t.Fatalf("error = %v, want conversion error", err)
			}
		})
	}
}

func TestContainerSniffing(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantWAV bool
		wantMP3 bool
	}{
		{"wav", []byte("RIFF\x00\x00\x00\x00WAVEfmt "), true, false},
		{"id3 mp3", []byte("ID3\x04\x00"), false, true},
		{"frame sync mp3", []byte{0xFF, 0xFB, 0x90, 0x00}, false, true},
		{"ogg", []byte("OggS\x00\x02"), false, false},
		{"riff but not wave", []byte("RIFF\x00\x00\x00\x00AVI LIST"), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isWAV(tt.data); got != tt.wantWAV {
				t.Errorf("isWAV = %v, want %v", got, tt.wantWAV)
			}
			if got := isMP3(tt.data); got != tt.wantMP3 {
				t.Errorf("isMP3 = %v, want %v", got, tt.wantMP3)
			}
		})
	}
}

func TestNormalizerToWAV(t *testing.T) {
	in, err := wav.EncodeFloat32([][]float32{{0.5, -0.5, 0, 0.75}}, 16000)
	if err != nil {
		t.Fatal(err)
	}

	n := NewNormalizer(newTestDecoder(noFFmpeg(t)))
	out, err := n.ToWAV(context.Background(), in)
	if err != nil {
		t.Fatalf("ToWAV() error = %v", err)
	}

	h, err := wav.ParseHeader(out)
	if err != nil {
		t.Fatalf("output header: %v", err)
	}
	if h.Channels != 1 || h.SampleRate != 16000 || h.DataSize != 8 {
		t.Errorf("header = %+v", h)
	}
}

func TestPeakLevel(t *testing.T) {
	if got := peakLevel(make([]byte, 64)); got != 0 {
		t.Errorf("silence level = %f, want 0", got)
	}

	loud := make([]byte, 4)
	binary.LittleEndian.PutUint16(loud[2:], uint16(math.MaxInt16))
	if got := peakLevel(loud); got < 0.99 || got > 1 {
		t.Errorf("full scale level = %f, want ~1", got)
	}
}

func TestRunCommandKillsOnCancel(t *testing.T) {
	sleep, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep not available")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = runCommand(ctx, exec.Command(sleep, "10"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("command outlived its context by %v", elapsed)
	}
}

func TestRunCommandCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cmd := exec.Command("true")
	if err := runCommand(ctx, cmd); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want canceled", err)
	}
	if cmd.Process != nil {
		t.Error("command should not have started")
	}
}
