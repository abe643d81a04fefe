package rpc

import (
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/xKoRx/echo/sdk/domain"
)

// LinkView link con su estado derivado.
type LinkView struct {
	domain.Link
	Status domain.LinkStatus `json:"status"`
}

// Snapshot vista de solo lectura de cuentas y links.
type Snapshot struct {
	Accounts            []domain.Account `json:"accounts"`
	Links               []LinkView       `json:"links"`
	HeartbeatIntervalMs int64            `json:"heartbeat_interval_ms"`
	GeneratedAt         time.Time        `json:"generated_at"`
}

// SetLinkEnabledRequest cuerpo de SetLinkEnabled.
type SetLinkEnabledRequest struct {
	LinkID  string `json:"link_id"`
	Enabled bool   `json:"enabled"`
}

// DeleteLinkRequest cuerpo de DeleteLink.
type DeleteLinkRequest struct {
	LinkID string `json:"link_id"`
}

// RecentEventsRequest cuerpo de RecentEvents. Follow mantiene el stream abierto.
type RecentEventsRequest struct {
	Limit  int  `json:"limit"`
	Follow bool `json:"follow"`
}

// ToStruct convierte v (con tags json) a structpb.Struct.
//
// Los enteros viajan como number; valores > 2^53 pierden precisión.
func ToStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("struct from %T: %w", v, err)
	}
	return out, nil
}

// FromStruct decodifica s en v (con tags json).
func FromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	raw, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal struct: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}
