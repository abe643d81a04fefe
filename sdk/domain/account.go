package domain

import "time"

// Role rol de una cuenta dentro del copiado.
type Role string

const (
	RoleSource      Role = "source"
	RoleDestination Role = "destination"
)

// Valid indica si el rol es conocido.
func (r Role) Valid() bool {
	return r == RoleSource || r == RoleDestination
}

// Liveness estado de vida de una cuenta según el Status Engine.
type Liveness string

const (
	LivenessUnknown Liveness = "unknown"
	LivenessOnline  Liveness = "online"
	LivenessOffline Liveness = "offline"
	LivenessRemoved Liveness = "removed"
)

// Account cuenta de trading registrada en el relay.
//
// Propiedad exclusiva del Status Engine; el resto de componentes lee copias.
type Account struct {
	AccountID         string    `json:"account_id"`
	Role              Role      `json:"role"`
	Platform          string    `json:"platform,omitempty"`
	Broker            string    `json:"broker,omitempty"`
	Version           string    `json:"version,omitempty"`
	LastHeartbeat     time.Time `json:"last_heartbeat"`
	IsTradeAllowed    bool      `json:"is_trade_allowed"`
	OpenPositionCount int       `json:"open_position_count"`
	Balance           float64   `json:"balance,omitempty"`
	Equity            float64   `json:"equity,omitempty"`
	Liveness          Liveness  `json:"liveness"`
}

// LinkStatus estado derivado de un link. Nunca se persiste.
type LinkStatus string

const (
	LinkDisabled LinkStatus = "disabled"
	LinkWaiting  LinkStatus = "waiting"
	LinkActive   LinkStatus = "active"
)

// DeriveLinkStatus calcula el estado de un link a partir de la intención del operador
// y la vida de ambos extremos.
func DeriveLinkStatus(enabled, sourceLive, destinationLive bool) LinkStatus {
	if !enabled {
		return LinkDisabled
	}
	if sourceLive && destinationLive {
		return LinkActive
	}
	return LinkWaiting
}
