package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/xKoRx/echo/sdk/utils"
)

// Session conexión activa con el terminal.
//
// Un único goroutine lee el pipe: las respuestas se entregan a su Call por id y
// los eventos van a Events(). Tras un error de lectura la sesión queda cerrada.
type Session struct {
	conn    io.ReadWriteCloser
	reader  *LineReader
	writer  *LineWriter
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]chan Message

	events    chan Message
	done      chan struct{}
	closeOnce sync.Once
	err       error
}

// NewSession inicia la sesión sobre conn. timeout acota cada Call (0 = sólo ctx).
func NewSession(conn io.ReadWriteCloser, timeout time.Duration) *Session {
	s := &Session{
		conn:    conn,
		reader:  NewLineReader(conn),
		writer:  NewLineWriter(conn),
		timeout: timeout,
		pending: make(map[string]chan Message),
		events:  make(chan Message, 256),
		done:    make(chan struct{}),
	}
	go s.readLoop()
	return s
}

// Events eventos no solicitados emitidos por el terminal.
func (s *Session) Events() <-chan Message { return s.events }

// Done se cierra cuando la sesión termina.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err causa del cierre; nil mientras la sesión está viva.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Close cierra la sesión y la conexión.
func (s *Session) Close() error {
	s.fail(ErrPipeClosed)
	return nil
}

// Call envía command y espera la respuesta correlacionada.
//
// result puede ser nil. Una respuesta con ok=false retorna *RemoteError.
func (s *Session) Call(ctx context.Context, command string, payload, result any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", command, err)
	}

	id := utils.GenerateUUIDv7()
	ch := make(chan Message, 1)

	s.mu.Lock()
	s.pending[id] = ch
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if err := s.writer.WriteMessage(Message{Type: TypeRequest, ID: id, Command: command, Payload: raw}); err != nil {
		s.fail(err)
		return fmt.Errorf("write %s: %w", command, err)
	}

	select {
	case resp := <-ch:
		if !resp.OK {
			return &RemoteError{Command: command, Message: resp.Error, Code: resp.Code}
		}
		if result != nil && len(resp.Payload) > 0 {
			if err := json.Unmarshal(resp.Payload, result); err != nil {
				return fmt.Errorf("decode %s result: %w", command, err)
			}
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", command, ctx.Err())
	case <-s.done:
		return fmt.Errorf("%s: %w", command, s.err)
	}
}

func (s *Session) readLoop() {
	for {
		msg, err := s.reader.ReadMessage()
		if err != nil {
			if errors.Is(err, ErrInvalidMessage) {
				continue
			}
			s.fail(err)
			return
		}

		switch msg.Type {
		case TypeResponse:
			s.mu.Lock()
			ch, ok := s.pending[msg.ID]
			s.mu.Unlock()
			if ok {
				select {
				case ch <- msg:
				default:
				}
			}
		case TypeEvent:
			select {
			case s.events <- msg:
			case <-s.done:
				return
			}
		}
	}
}

func (s *Session) fail(err error) {
	s.closeOnce.Do(func() {
		if err == nil || errors.Is(err, io.EOF) {
			err = ErrPipeClosed
		}
		s.err = err
		close(s.done)
		_ = s.conn.Close()
	})
}
