// Package wire define el framing y la codificación de mensajes entre endpoints y relay.
//
// # Framing
//
// Cada mensaje es "<topic> <payload>": el topic no contiene espacios y se separa
// del payload por el primer espacio.
//
//	frame := wire.Frame{Topic: wire.TradeTopic("M1", "S1"), Payload: payload}
//	raw := frame.Bytes()
//
//	parsed, err := wire.ParseFrame(raw)
//
// # Topics
//
//   - Entrada (endpoint → relay): register, heartbeat, unregister, trade, request_config
//   - Copias de trades: trade/<source>/<destination>
//   - Snapshots de configuración: config/<destination>
//   - Control de suscripción: subscribe <topic>, unsubscribe <topic>
//
// # Codecs
//
// JSON y msgpack llevan los mismos nombres de campo (tags json). Decode detecta el
// formato por el primer byte, así emisores con distinto codec conviven:
//
//	codec, _ := wire.CodecByName("msgpack")
//	raw, err := wire.EncodeFrame(codec, wire.TopicHeartbeat, hb)
//
//	var hb domain.Heartbeat
//	err := wire.DecodePayload(frame.Payload, &hb) // valida campos requeridos
package wire
