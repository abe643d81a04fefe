// Package ipc puente line-delimited JSON entre el agente y el terminal de trading.
//
// El agente escucha en un Named Pipe (go-winio en Windows, socket unix en el resto)
// y el EA del terminal se conecta como cliente. Cada línea es un Message:
//
//	{"type":"request","id":"...","command":"place_order","payload":{...}}
//	{"type":"response","id":"...","ok":true,"payload":{...}}
//	{"type":"event","command":"trade_event","payload":{...}}
//
// Session multiplexa requests/responses por id y entrega los eventos no solicitados
// por un canal.
package ipc
