package wire

import "strings"

// Topics de entrada (endpoint → relay).
const (
	TopicRegister      = "register"
	TopicHeartbeat     = "heartbeat"
	TopicUnregister    = "unregister"
	TopicTrade         = "trade"
	TopicRequestConfig = "request_config"

	TopicSyncRequest      = "sync_request"
	TopicPositionSnapshot = "position_snapshot"
)

// Topics de control del stream de suscripción.
const (
	ControlSubscribe   = "subscribe"
	ControlUnsubscribe = "unsubscribe"
)

const (
	tradePrefix     = "trade/"
	configPrefix    = "config/"
	syncPrefix      = "sync/"
	positionsPrefix = "positions/"
)

// TradeTopic topic de copias para el link source → destination.
func TradeTopic(source, destination string) string {
	return tradePrefix + source + "/" + destination
}

// ConfigTopic topic de snapshots de configuración de un destino.
func ConfigTopic(destination string) string {
	return configPrefix + destination
}

// ParseTradeTopic extrae source y destination de un topic de copias.
func ParseTradeTopic(topic string) (source, destination string, ok bool) {
	if !strings.HasPrefix(topic, tradePrefix) {
		return "", "", false
	}
	parts := strings.Split(strings.TrimPrefix(topic, tradePrefix), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// IsConfigTopic indica si el topic es de configuración.
func IsConfigTopic(topic string) bool {
	return strings.HasPrefix(topic, configPrefix) && len(topic) > len(configPrefix)
}

// SyncTopic topic por el que un origen recibe pedidos de sincronización.
func SyncTopic(source string) string {
	return syncPrefix + source
}

// PositionsTopic topic por el que un destino recibe snapshots de posiciones.
func PositionsTopic(destination string) string {
	return positionsPrefix + destination
}

// IsSyncTopic indica si el topic es de pedidos de sincronización.
func IsSyncTopic(topic string) bool {
	return strings.HasPrefix(topic, syncPrefix) && len(topic) > len(syncPrefix)
}

// IsPositionsTopic indica si el topic es de snapshots de posiciones.
func IsPositionsTopic(topic string) bool {
	return strings.HasPrefix(topic, positionsPrefix) && len(topic) > len(positionsPrefix)
}
