package ipc

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// LineReader lee Messages line-delimited.
type LineReader struct {
	scanner *bufio.Scanner
}

// NewLineReader crea un reader con buffer de hasta MaxLineSize.
func NewLineReader(r io.Reader) *LineReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), MaxLineSize)
	return &LineReader{scanner: scanner}
}

// ReadMessage lee la siguiente línea. Retorna io.EOF al cerrar el otro extremo.
//
// Una línea inválida retorna ErrInvalidMessage y el reader sigue utilizable.
func (r *LineReader) ReadMessage() (Message, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return Message{}, err
		}
		return Message{}, io.EOF
	}

	line := bytes.TrimSpace(r.scanner.Bytes())
	if len(line) == 0 {
		return Message{}, fmt.Errorf("%w: empty line", ErrInvalidMessage)
	}

	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if msg.Type == "" {
		return Message{}, fmt.Errorf("%w: missing type", ErrInvalidMessage)
	}
	return msg, nil
}

// LineWriter escribe Messages line-delimited; seguro para uso concurrente.
type LineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewLineWriter crea un writer.
func NewLineWriter(w io.Writer) *LineWriter {
	return &LineWriter{w: w}
}

// WriteMessage serializa msg y agrega '\n' en una sola escritura.
func (w *LineWriter) WriteMessage(msg Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal ipc message: %w", err)
	}
	raw = append(raw, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	_, err = w.w.Write(raw)
	return err
}
