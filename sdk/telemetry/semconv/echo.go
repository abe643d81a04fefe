package semconv

import "go.opentelemetry.io/otel/attribute"

// Echo contiene atributos semánticos específicos del copiador.
//
// # Identificadores
//
//   - echo.account_id: cuenta emisora o dueña del evento
//   - echo.source_account / echo.destination_account: extremos de un link
//   - echo.link_id: identificador estable del link
//   - echo.event_id: UUIDv7 asignado por el relay al evento
//   - echo.source_order_id / echo.destination_order_id: tickets origen/destino
//
// # Trading
//
//   - echo.symbol, echo.order_side, echo.order_type, echo.lot_size, echo.price, echo.magic_number
//
// # Routing y estado
//
//   - echo.topic: topic de publicación
//   - echo.event_kind: open/close/modify
//   - echo.link_status: disabled/waiting/active
//   - echo.liveness: unknown/online/offline/removed
//   - echo.reason: motivo de rechazo o descarte
//   - echo.config_version: versión de configuración
//
// # Uso
//
//	client.Info(ctx, "Copy routed",
//	    semconv.Echo.LinkID.String("M1->S1"),
//	    semconv.Echo.Topic.String("trade/M1/S1"),
//	)
var Echo = echoAttributes{
	// Identificadores
	AccountID:          attribute.Key("echo.account_id"),
	SourceAccount:      attribute.Key("echo.source_account"),
	DestinationAccount: attribute.Key("echo.destination_account"),
	LinkID:             attribute.Key("echo.link_id"),
	EventID:            attribute.Key("echo.event_id"),
	SourceOrderID:      attribute.Key("echo.source_order_id"),
	DestinationOrderID: attribute.Key("echo.destination_order_id"),

	// Trading
	Symbol:      attribute.Key("echo.symbol"),
	OrderSide:   attribute.Key("echo.order_side"),
	OrderType:   attribute.Key("echo.order_type"),
	LotSize:     attribute.Key("echo.lot_size"),
	Price:       attribute.Key("echo.price"),
	MagicNumber: attribute.Key("echo.magic_number"),

	// Routing y estado
	Topic:         attribute.Key("echo.topic"),
	EventKind:     attribute.Key("echo.event_kind"),
	LinkStatus:    attribute.Key("echo.link_status"),
	Liveness:      attribute.Key("echo.liveness"),
	Reason:        attribute.Key("echo.reason"),
	ConfigVersion: attribute.Key("echo.config_version"),
	Status:        attribute.Key("echo.status"),
	ErrorCode:     attribute.Key("echo.error_code"),
	Component:     attribute.Key("echo.component"),
	Attempt:       attribute.Key("echo.attempt"),
	DelayMs:       attribute.Key("echo.delay_ms"),
	Codec:         attribute.Key("echo.codec"),
}

type echoAttributes struct {
	// Identificadores
	AccountID          attribute.Key // Cuenta emisora
	SourceAccount      attribute.Key // Cuenta origen del link
	DestinationAccount attribute.Key // Cuenta destino del link
	LinkID             attribute.Key // ID estable del link
	EventID            attribute.Key // UUIDv7 del evento
	SourceOrderID      attribute.Key // Ticket origen
	DestinationOrderID attribute.Key // Ticket destino

	// Trading
	Symbol      attribute.Key // Símbolo del instrumento
	OrderSide   attribute.Key // buy/sell
	OrderType   attribute.Key // buy, sell_limit, ...
	LotSize     attribute.Key // Tamaño en lotes
	Price       attribute.Key // Precio de la orden
	MagicNumber attribute.Key // MagicNumber MT4/MT5

	// Routing y estado
	Topic         attribute.Key // Topic de publicación
	EventKind     attribute.Key // open/close/modify
	LinkStatus    attribute.Key // Estado derivado del link
	Liveness      attribute.Key // Estado de vida de la cuenta
	Reason        attribute.Key // Motivo de rechazo/descarte
	ConfigVersion attribute.Key // Versión de configuración
	Status        attribute.Key // success/rejected/dropped
	ErrorCode     attribute.Key // Código de error de dominio
	Component     attribute.Key // relay/agent
	Attempt       attribute.Key // Número de intento
	DelayMs       attribute.Key // Retraso de la señal en ms
	Codec         attribute.Key // json/msgpack
}

// ComponentValues valores válidos para echo.component
var ComponentValues = struct {
	Relay string
	Agent string
	CLI   string
}{
	Relay: "relay",
	Agent: "agent",
	CLI:   "cli",
}

// StatusValues valores válidos para echo.status
var StatusValues = struct {
	Success  string
	Rejected string
	Dropped  string
	Resting  string
	Failed   string
}{
	Success:  "success",
	Rejected: "rejected",
	Dropped:  "dropped",
	Resting:  "resting",
	Failed:   "failed",
}

// LinkAttributes atributos de un link.
//
// Example:
//
//	client.Info(ctx, "Config published", semconv.LinkAttributes("M1->S1", "M1", "S1")...)
func LinkAttributes(linkID, source, destination string) []attribute.KeyValue {
	return []attribute.KeyValue{
		Echo.LinkID.String(linkID),
		Echo.SourceAccount.String(source),
		Echo.DestinationAccount.String(destination),
	}
}

// OrderAttributes atributos de una orden copiada.
func OrderAttributes(sourceOrderID int64, symbol, orderType string, lots float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		Echo.SourceOrderID.Int64(sourceOrderID),
		Echo.Symbol.String(symbol),
		Echo.OrderType.String(orderType),
		Echo.LotSize.Float64(lots),
	}
}
