//go:build windows

package ipc

import (
	"fmt"
	"net"

	"github.com/Microsoft/go-winio"
)

// PipePath ruta completa del pipe.
func PipePath(name string) string {
	return fmt.Sprintf(`\\.\pipe\%s`, name)
}

// Listen crea el Named Pipe en modo byte.
func Listen(config *PipeConfig) (net.Listener, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	listener, err := winio.ListenPipe(PipePath(config.Name), &winio.PipeConfig{
		MessageMode:      false,
		InputBufferSize:  int32(config.BufferSize),
		OutputBufferSize: int32(config.BufferSize),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe listener %s: %w", config.Name, err)
	}
	return listener, nil
}

// Dial conecta a un Named Pipe existente.
func Dial(config *PipeConfig) (net.Conn, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	timeout := config.Timeout
	conn, err := winio.DialPipe(PipePath(config.Name), &timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to pipe %s: %w", config.Name, err)
	}
	return conn, nil
}
