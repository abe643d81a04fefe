package domain

import (
	"fmt"
	"strings"
	"time"
)

// LotMode modo de cálculo de volumen de la copia.
type LotMode string

const (
	LotModeMultiplier  LotMode = "multiplier"
	LotModeMarginRatio LotMode = "margin_ratio"
)

// Defaults aplicados a links nuevos.
const (
	DefaultMaxSignalDelayMs int64 = 5000
	DefaultMaxRetries             = 3
	DefaultLotMultiplier          = 1.0
)

// SymbolMapping par origen → destino. Gana el primer match.
type SymbolMapping struct {
	SourceSymbol string `json:"source_symbol" yaml:"source_symbol"`
	TargetSymbol string `json:"target_symbol" yaml:"target_symbol"`
}

// Filters restricciones opcionales. Listas vacías = sin restricción.
type Filters struct {
	AllowedSymbols      []string `json:"allowed_symbols,omitempty" yaml:"allowed_symbols"`
	BlockedSymbols      []string `json:"blocked_symbols,omitempty" yaml:"blocked_symbols"`
	AllowedMagicNumbers []int64  `json:"allowed_magic_numbers,omitempty" yaml:"allowed_magic_numbers"`
	BlockedMagicNumbers []int64  `json:"blocked_magic_numbers,omitempty" yaml:"blocked_magic_numbers"`
}

// Link relación de copiado origen → destino con sus reglas.
//
// ConfigVersion crece estrictamente en cada mutación; lo asigna el store.
type Link struct {
	LinkID             string          `json:"link_id" yaml:"link_id"`
	SourceAccount      string          `json:"source_account" yaml:"source_account"`
	DestinationAccount string          `json:"destination_account" yaml:"destination_account"`
	Enabled            bool            `json:"enabled" yaml:"enabled"`
	LotCalculationMode LotMode         `json:"lot_calculation_mode" yaml:"lot_calculation_mode"`
	LotMultiplier      float64         `json:"lot_multiplier" yaml:"lot_multiplier"`
	ReverseTrade       bool            `json:"reverse_trade" yaml:"reverse_trade"`
	SymbolMappings     []SymbolMapping `json:"symbol_mappings,omitempty" yaml:"symbol_mappings"`
	SymbolPrefix       string          `json:"symbol_prefix,omitempty" yaml:"symbol_prefix"`
	SymbolSuffix       string          `json:"symbol_suffix,omitempty" yaml:"symbol_suffix"`
	Filters            Filters         `json:"filters" yaml:"filters"`
	SourceLotMin       float64         `json:"source_lot_min,omitempty" yaml:"source_lot_min"`
	SourceLotMax       float64         `json:"source_lot_max,omitempty" yaml:"source_lot_max"`
	CopyPendingOrders  bool            `json:"copy_pending_orders" yaml:"copy_pending_orders"`
	MaxSignalDelayMs   int64           `json:"max_signal_delay_ms" yaml:"max_signal_delay_ms"`
	UsePendingFallback bool            `json:"use_pending_fallback" yaml:"use_pending_fallback"`
	MaxRetries         int             `json:"max_retries" yaml:"max_retries"`
	MaxSlippage        int             `json:"max_slippage,omitempty" yaml:"max_slippage"`
	ConfigVersion      int64           `json:"config_version" yaml:"-"`
	UpdatedAt          time.Time       `json:"updated_at" yaml:"-"`

	// EquityRatio equity destino / equity origen al momento de decidir.
	// Sólo lo usa LotModeMarginRatio; no se persiste ni viaja en snapshots.
	EquityRatio float64 `json:"equity_ratio,omitempty" yaml:"-"`
}

// ApplyDefaults completa campos numéricos vacíos.
func (l *Link) ApplyDefaults() {
	if l.LotCalculationMode == "" {
		l.LotCalculationMode = LotModeMultiplier
	}
	if l.MaxSignalDelayMs == 0 {
		l.MaxSignalDelayMs = DefaultMaxSignalDelayMs
	}
	if l.LinkID == "" && l.SourceAccount != "" && l.DestinationAccount != "" {
		l.LinkID = DefaultLinkID(l.SourceAccount, l.DestinationAccount)
	}
}

// Validate valida los campos requeridos del link.
func (l *Link) Validate() error {
	if strings.TrimSpace(l.SourceAccount) == "" {
		return NewValidationError("source_account", l.SourceAccount, "source_account is required")
	}
	if strings.TrimSpace(l.DestinationAccount) == "" {
		return NewValidationError("destination_account", l.DestinationAccount, "destination_account is required")
	}
	if l.SourceAccount == l.DestinationAccount {
		return NewValidationError("destination_account", l.DestinationAccount, "destination must differ from source")
	}
	if strings.ContainsAny(l.SourceAccount+l.DestinationAccount, " /") {
		return NewValidationError("account_id", l.SourceAccount+"/"+l.DestinationAccount, "account ids cannot contain spaces or '/'")
	}
	if l.LotMultiplier < 0 {
		return NewValidationError("lot_multiplier", l.LotMultiplier, "lot_multiplier cannot be negative")
	}
	if l.MaxRetries < 0 {
		return NewValidationError("max_retries", l.MaxRetries, "max_retries cannot be negative")
	}
	if l.MaxSignalDelayMs < 0 {
		return NewValidationError("max_signal_delay_ms", l.MaxSignalDelayMs, "max_signal_delay_ms cannot be negative")
	}
	if l.SourceLotMax > 0 && l.SourceLotMin > l.SourceLotMax {
		return NewValidationError("source_lot_min", l.SourceLotMin, "source_lot_min cannot exceed source_lot_max")
	}
	switch l.LotCalculationMode {
	case "", LotModeMultiplier, LotModeMarginRatio:
	default:
		return NewValidationError("lot_calculation_mode", l.LotCalculationMode, "unknown lot calculation mode")
	}
	return nil
}

// Clone copia profunda (slices incluidos).
func (l Link) Clone() Link {
	out := l
	out.SymbolMappings = append([]SymbolMapping(nil), l.SymbolMappings...)
	out.Filters = Filters{
		AllowedSymbols:      append([]string(nil), l.Filters.AllowedSymbols...),
		BlockedSymbols:      append([]string(nil), l.Filters.BlockedSymbols...),
		AllowedMagicNumbers: append([]int64(nil), l.Filters.AllowedMagicNumbers...),
		BlockedMagicNumbers: append([]int64(nil), l.Filters.BlockedMagicNumbers...),
	}
	return out
}

// DefaultLinkID identificador por defecto de un link: "<source>-><destination>".
func DefaultLinkID(source, destination string) string {
	return fmt.Sprintf("%s->%s", source, destination)
}

// ConfigSnapshot snapshot inmutable publicado al destino tras cada mutación.
type ConfigSnapshot struct {
	Link        Link      `json:"link"`
	Deleted     bool      `json:"deleted,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// Version atajo a Link.ConfigVersion.
func (s ConfigSnapshot) Version() int64 {
	return s.Link.ConfigVersion
}
