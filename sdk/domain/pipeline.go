package domain

// RejectReason motivo de rechazo del pipeline.
type RejectReason string

const (
	RejectNone             RejectReason = ""
	RejectDisabled         RejectReason = "disabled"
	RejectSymbolNotAllowed RejectReason = "symbol_not_allowed"
	RejectSymbolBlocked    RejectReason = "symbol_blocked"
	RejectMagicNotAllowed  RejectReason = "magic_not_allowed"
	RejectMagicBlocked     RejectReason = "magic_blocked"
	RejectLotBelowMin      RejectReason = "lot_below_min"
	RejectLotAboveMax      RejectReason = "lot_above_max"
	RejectPendingNotCopied RejectReason = "pending_not_copied"
)

// Decision resultado de Decide: Accept(Event) o Reject(Reason).
type Decision struct {
	Accepted bool
	Reason   RejectReason
	Event    TradeEvent
}

func accept(e TradeEvent) Decision { return Decision{Accepted: true, Event: e} }

func reject(r RejectReason) Decision { return Decision{Reason: r} }

// Decide aplica filtros y transformación de un link a un evento.
//
// Función pura: no muta event ni link y para la misma entrada retorna siempre
// la misma salida. Es la misma lógica en relay y endpoint.
func Decide(event TradeEvent, link Link) Decision {
	if !link.Enabled {
		return reject(RejectDisabled)
	}
	if event.Kind != EventOpen || event.Transformed {
		return accept(event)
	}

	f := link.Filters
	if len(f.AllowedSymbols) > 0 && !containsString(f.AllowedSymbols, event.Symbol) {
		return reject(RejectSymbolNotAllowed)
	}
	if containsString(f.BlockedSymbols, event.Symbol) {
		return reject(RejectSymbolBlocked)
	}
	if len(f.AllowedMagicNumbers) > 0 && !containsInt64(f.AllowedMagicNumbers, event.MagicNumber) {
		return reject(RejectMagicNotAllowed)
	}
	if containsInt64(f.BlockedMagicNumbers, event.MagicNumber) {
		return reject(RejectMagicBlocked)
	}
	if link.SourceLotMin > 0 && event.Volume < link.SourceLotMin {
		return reject(RejectLotBelowMin)
	}
	if link.SourceLotMax > 0 && event.Volume > link.SourceLotMax {
		return reject(RejectLotAboveMax)
	}
	if event.Entry.IsPending() && !link.CopyPendingOrders {
		return reject(RejectPendingNotCopied)
	}

	out := event
	out.Symbol = TransformSymbol(event.Symbol, link)
	out.Volume = ScaleVolume(event.Volume, link)
	if link.ReverseTrade {
		out.Side = event.Side.Invert()
	}
	out.Transformed = true
	return accept(out)
}

// TransformSymbol primer mapping que coincide; si ninguno, prefix+symbol+suffix.
func TransformSymbol(symbol string, link Link) string {
	for _, m := range link.SymbolMappings {
		if m.SourceSymbol == symbol {
			return m.TargetSymbol
		}
	}
	return link.SymbolPrefix + symbol + link.SymbolSuffix
}
