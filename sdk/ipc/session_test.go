package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTerminal responde requests desde el otro extremo de un net.Pipe.
func fakeTerminal(t *testing.T, conn net.Conn, handle func(Message) Message) {
	t.Helper()
	reader := NewLineReader(conn)
	writer := NewLineWriter(conn)
	go func() {
		for {
			req, err := reader.ReadMessage()
			if err != nil {
				return
			}
			resp := handle(req)
			resp.Type = TypeResponse
			resp.ID = req.ID
			if err := writer.WriteMessage(resp); err != nil {
				return
			}
		}
	}()
}

func TestSession_Call(t *testing.T) {
	agentSide, terminalSide := net.Pipe()
	fakeTerminal(t, terminalSide, func(req Message) Message {
		switch req.Command {
		case "place_order":
			return Message{OK: true, Payload: json.RawMessage(`{"ticket":555}`)}
		default:
			return Message{OK: false, Error: "trade disabled", Code: 133}
		}
	})

	s := NewSession(agentSide, time.Second)
	defer s.Close()

	var result struct {
		Ticket int64 `json:"ticket"`
	}
	require.NoError(t, s.Call(context.Background(), "place_order", map[string]any{"symbol": "EURUSD"}, &result))
	assert.Equal(t, int64(555), result.Ticket)

	err := s.Call(context.Background(), "close_order", map[string]any{"ticket": 555}, nil)
	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, 133, remote.Code)
	assert.Equal(t, "close_order", remote.Command)
}

func TestSession_EventsAndInvalidLines(t *testing.T) {
	agentSide, terminalSide := net.Pipe()
	s := NewSession(agentSide, time.Second)
	defer s.Close()

	go func() {
		_, _ = terminalSide.Write([]byte("not json\n"))
		_, _ = terminalSide.Write([]byte(`{"type":"event","command":"trade_event","payload":{"source_order_id":1}}` + "\n"))
	}()

	select {
	case ev := <-s.Events():
		assert.Equal(t, "trade_event", ev.Command)
		assert.JSONEq(t, `{"source_order_id":1}`, string(ev.Payload))
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
	assert.NoError(t, s.Err())
}

func TestSession_ClosedPeer(t *testing.T) {
	agentSide, terminalSide := net.Pipe()
	s := NewSession(agentSide, time.Second)
	require.NoError(t, terminalSide.Close())

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("session not closed")
	}
	assert.ErrorIs(t, s.Err(), ErrPipeClosed)

	err := s.Call(context.Background(), "quote", nil, nil)
	assert.Error(t, err)
}

func TestSession_CallTimeout(t *testing.T) {
	agentSide, terminalSide := net.Pipe()
	go func() {
		reader := NewLineReader(terminalSide)
		for {
			if _, err := reader.ReadMessage(); err != nil {
				return
			}
		}
	}()

	s := NewSession(agentSide, 50*time.Millisecond)
	defer s.Close()

	err := s.Call(context.Background(), "quote", nil, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestListenAndDial(t *testing.T) {
	cfg := DefaultPipeConfig("echo_ipc_test")
	listener, err := Listen(cfg)
	require.NoError(t, err)
	defer listener.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := listener.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	client, err := Dial(cfg)
	require.NoError(t, err)
	defer client.Close()

	server := <-accepted
	defer server.Close()

	go func() { _ = NewLineWriter(client).WriteMessage(Message{Type: TypeEvent, Command: "ping"}) }()
	msg, err := NewLineReader(server).ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "ping", msg.Command)
}
