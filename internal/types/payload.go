package types

import (
	"encoding/base64"
	"errors"
	"strings"
)

// DecodeAudioPayload accepts plain base64 or a data:<mime>;base64,<payload> URI
func DecodeAudioPayload(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		_, payload, ok := strings.Cut(s, ",")
		if !ok {
			return nil, errors.New("malformed data URI")
		}
		s = payload
	}
	return base64.StdEncoding.DecodeString(s)
}
