package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

// Tipos de mensaje.
const (
	TypeRequest  = "request"
	TypeResponse = "response"
	TypeEvent    = "event"
)

// MaxLineSize tamaño máximo de una línea.
const MaxLineSize = 1024 * 1024

var (
	// ErrPipeClosed el pipe o la sesión fueron cerrados.
	ErrPipeClosed = io.ErrClosedPipe

	// ErrInvalidMessage línea vacía o JSON inválido.
	ErrInvalidMessage = errors.New("ipc: invalid message")
)

// Message sobre line-delimited intercambiado con el terminal.
type Message struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Command string          `json:"command,omitempty"`
	OK      bool            `json:"ok,omitempty"`
	Error   string          `json:"error,omitempty"`
	Code    int             `json:"code,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// RemoteError respuesta de error del terminal. Code es el código nativo del broker.
type RemoteError struct {
	Command string
	Message string
	Code    int
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("terminal %s failed (code %d): %s", e.Command, e.Code, e.Message)
}

// PipeConfig configuración de un Named Pipe.
type PipeConfig struct {
	// Name nombre del pipe (sin el prefijo \\.\pipe\)
	Name string

	// BufferSize tamaño del buffer del pipe (bytes)
	BufferSize int

	// Timeout timeout de Dial y de cada Call
	Timeout time.Duration
}

// DefaultPipeConfig retorna una configuración por defecto.
func DefaultPipeConfig(name string) *PipeConfig {
	return &PipeConfig{
		Name:       name,
		BufferSize: 64 * 1024,
		Timeout:    5 * time.Second,
	}
}
