//go:build !windows

package ipc

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
)

// PipePath ruta del socket unix que reemplaza al Named Pipe.
func PipePath(name string) string {
	return filepath.Join(os.TempDir(), name+".sock")
}

// Listen crea el socket unix; elimina un socket huérfano previo.
func Listen(config *PipeConfig) (net.Listener, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	path := PipePath(config.Name)
	_ = os.Remove(path)

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe listener %s: %w", config.Name, err)
	}
	return listener, nil
}

// Dial conecta al socket unix.
func Dial(config *PipeConfig) (net.Conn, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	conn, err := net.DialTimeout("unix", PipePath(config.Name), config.Timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to pipe %s: %w", config.Name, err)
	}
	return conn, nil
}
