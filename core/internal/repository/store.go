// Package repository persistencia de la configuración de links del relay.
package repository

import (
	"context"
	"errors"

	"github.com/xKoRx/echo/sdk/domain"
)

var (
	// ErrLinkNotFound el link no existe.
	ErrLinkNotFound = errors.New("link not found")

	// ErrLinkExists ya existe un link con ese id o con el mismo par origen/destino.
	ErrLinkExists = errors.New("link already exists")
)

// LinkStore settings store de links.
//
// Cada mutación asigna un config_version nuevo tomado de una secuencia global,
// de modo que crece estrictamente por link incluso tras borrar y recrear.
type LinkStore interface {
	List(ctx context.Context) ([]domain.Link, error)
	Get(ctx context.Context, linkID string) (domain.Link, error)

	// Create persiste un link nuevo.
	Create(ctx context.Context, link domain.Link) (domain.Link, error)

	// Update reemplaza la configuración de un link existente.
	Update(ctx context.Context, link domain.Link) (domain.Link, error)

	// SetEnabled cambia sólo la intención del operador.
	SetEnabled(ctx context.Context, linkID string, enabled bool) (domain.Link, error)

	// Delete elimina el link y retorna su última configuración con la versión del tombstone.
	Delete(ctx context.Context, linkID string) (domain.Link, error)

	Close() error
}
