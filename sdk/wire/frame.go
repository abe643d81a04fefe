package wire

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedFrame frame sin topic o sin separador.
var ErrMalformedFrame = errors.New("malformed frame")

// ErrMalformedPayload payload que no decodifica o no pasa validación.
var ErrMalformedPayload = errors.New("malformed payload")

// Frame unidad de transporte "<topic> <payload>".
type Frame struct {
	Topic   string
	Payload []byte
}

// Bytes serializa el frame.
func (f Frame) Bytes() []byte {
	out := make([]byte, 0, len(f.Topic)+1+len(f.Payload))
	out = append(out, f.Topic...)
	out = append(out, ' ')
	out = append(out, f.Payload...)
	return out
}

// ParseFrame separa topic y payload en el primer espacio.
//
// El payload se copia; el slice de entrada puede reutilizarse.
func ParseFrame(raw []byte) (Frame, error) {
	idx := bytes.IndexByte(raw, ' ')
	if idx <= 0 {
		return Frame{}, fmt.Errorf("%w: missing topic separator", ErrMalformedFrame)
	}
	payload := make([]byte, len(raw)-idx-1)
	copy(payload, raw[idx+1:])
	return Frame{Topic: string(raw[:idx]), Payload: payload}, nil
}

// ValidTopic indica si un topic es utilizable en el framing.
func ValidTopic(topic string) bool {
	return topic != "" && !strings.ContainsAny(topic, " \t\r\n")
}
