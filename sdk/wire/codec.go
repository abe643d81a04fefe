package wire

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec serializa payloads. Las implementaciones usan los tags json de los tipos.
type Codec interface {
	Name() string
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
}

// JSONCodec codec JSON (por defecto).
type JSONCodec struct{}

// Name implementa Codec.
func (JSONCodec) Name() string { return "json" }

// Marshal implementa Codec.
func (JSONCodec) Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }

// Unmarshal implementa Codec.
func (JSONCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

// MsgpackCodec codec binario compacto.
type MsgpackCodec struct{}

// Name implementa Codec.
func (MsgpackCodec) Name() string { return "msgpack" }

// Marshal implementa Codec.
func (MsgpackCodec) Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal implementa Codec.
func (MsgpackCodec) Unmarshal(data []byte, v interface{}) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

// CodecByName resuelve un codec por nombre ("" = json).
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSONCodec{}, nil
	case "msgpack":
		return MsgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec: %s", name)
	}
}

// DetectCodec infiere el codec por el primer byte del payload.
//
// JSON objeto empieza con '{'; msgpack map con fixmap (0x80-0x8f), map16 (0xde) o map32 (0xdf).
func DetectCodec(payload []byte) (Codec, bool) {
	trimmed := bytes.TrimLeft(payload, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, false
	}
	switch b := trimmed[0]; {
	case b == '{':
		return JSONCodec{}, true
	case b >= 0x80 && b <= 0x8f, b == 0xde, b == 0xdf:
		return MsgpackCodec{}, true
	default:
		return nil, false
	}
}

type validator interface {
	Validate() error
}

// DecodePayload decodifica con auto-detección y valida si el destino lo soporta.
//
// Todo error envuelve ErrMalformedPayload.
func DecodePayload(payload []byte, v interface{}) error {
	codec, ok := DetectCodec(payload)
	if !ok {
		return fmt.Errorf("%w: unknown encoding", ErrMalformedPayload)
	}
	if err := codec.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedPayload, codec.Name(), err)
	}
	if val, ok := v.(validator); ok {
		if err := val.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
	}
	return nil
}

// EncodeFrame serializa v con codec y lo enmarca bajo topic.
func EncodeFrame(codec Codec, topic string, v interface{}) ([]byte, error) {
	if !ValidTopic(topic) {
		return nil, fmt.Errorf("%w: invalid topic %q", ErrMalformedFrame, topic)
	}
	payload, err := codec.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", codec.Name(), err)
	}
	return Frame{Topic: topic, Payload: payload}.Bytes(), nil
}

// ControlFrame frame de control de suscripción ("subscribe trade/M1/S1").
func ControlFrame(op, topic string) []byte {
	return Frame{Topic: op, Payload: []byte(topic)}.Bytes()
}
