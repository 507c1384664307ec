package audio

import (
	"context"

	"github.com/dooshek/polyvoice/internal/logger"
	"github.com/dooshek/polyvoice/pkg/wav"
)

// Normalizer re-encodes any recorded audio as canonical 16-bit PCM WAV
type Normalizer struct {
	decoder *Decoder
}

func NewNormalizer(decoder *Decoder) *Normalizer {
	return &Normalizer{decoder: decoder}
}

// ToWAV decodes data and encodes the samples as a WAV document. Decode and
// encode failures are both conversion errors.
func (n *Normalizer) ToWAV(ctx context.Context, data []byte) ([]byte, error) {
	decoded, err := n.decoder.Decode(ctx, data)
	if err != nil {
		return nil, err
	}

	out, err := wav.EncodeFloat32(decoded.Samples, decoded.SampleRate)
	if err != nil {
		return nil, err
	}

	logger.Debugf("Normalized %d bytes to %d bytes WAV (%d ch, %d Hz, %.2fs)",
		len(data), len(out), len(decoded.Samples), decoded.SampleRate, decoded.Seconds())
	return out, nil
}
