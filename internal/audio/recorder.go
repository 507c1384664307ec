package audio

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/dooshek/polyvoice/internal/logger"
	"github.com/dooshek/polyvoice/pkg/wav"
	"github.com/gen2brain/malgo"
)

const (
	sampleRate = 16000
	channels   = 1
)

// Recorder captures S16 mono audio from the default input device
type Recorder struct {
	mu     sync.Mutex
	buffer bytes.Buffer
	// peak level of the most recent callback, 0..1
	level float64
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record captures until ctx is done and returns the audio as a WAV document
func (r *Recorder) Record(ctx context.Context) ([]byte, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		logger.Error("Error initializing context", err)
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}
	defer func() {
		_ = mctx.Uninit()
		mctx.Free()
	}()

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	r.mu.Lock()
	r.buffer.Reset()
	r.mu.Unlock()

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: func(outputBuffer, inputBuffer []byte, frameCount uint32) {
			r.mu.Lock()
			r.buffer.Write(inputBuffer)
			r.level = peakLevel(inputBuffer)
			r.mu.Unlock()
		},
	})
	if err != nil {
		logger.Error("Error initializing device", err)
		return nil, fmt.Errorf("failed to initialize capture device: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return nil, fmt.Errorf("failed to start capture device: %w", err)
	}

	started := time.Now()
	logger.Info("🎙️  Recording started...")
	<-ctx.Done()
	_ = device.Stop()

	r.mu.Lock()
	pcm := append([]byte(nil), r.buffer.Bytes()...)
	r.mu.Unlock()

	logger.Infof("🎙️ Recorded %.1fs (%d bytes PCM)", time.Since(started).Seconds(), len(pcm))

	// drop a trailing half sample if the device stopped mid-write
	pcm = pcm[:len(pcm)-len(pcm)%(channels*2)]
	return wav.ConvertPCMToWAV(pcm, channels, sampleRate)
}

// Level returns the peak input level of the latest captured buffer
func (r *Recorder) Level() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.level
}

// peakLevel maps the loudest int16 sample in buf to a 0..1 log scale
func peakLevel(buf []byte) float64 {
	var maxSample float64
	for i := 0; i+1 < len(buf); i += 2 {
		s := int16(buf[i]) | int16(buf[i+1])<<8
		if v := math.Abs(float64(s)); v > maxSample {
			maxSample = v
		}
	}
	peak := maxSample / 32768.0
	return math.Min(1, math.Log10(peak*9.0+1.0))
}
