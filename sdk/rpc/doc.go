// Package rpc servicio gRPC del relay definido a mano sobre tipos well-known de protobuf.
//
// Métodos:
//
//   - Ingest: client stream de frames `topic payload` (register, heartbeat, unregister, trade, request_config)
//   - Subscribe: bidi; el cliente envía `subscribe <topic>` / `unsubscribe <topic>` y recibe frames publicados
//   - Snapshot, CreateLink, UpdateLink, SetLinkEnabled, DeleteLink: superficie de operador (structpb)
//   - RecentEvents: server stream de eventos ruteados recientes
//
// Los frames viajan como wrapperspb.BytesValue; el payload lo codifica sdk/wire.
package rpc
