// Package grpc wrappers mínimos sobre google.golang.org/grpc para el relay y el agente.
//
// Server aplica keepalive, cadenas de interceptors y graceful shutdown; el bind
// del listener ocurre en NewServer, de modo que un puerto ocupado falla al
// arrancar y no en Serve. Client crea la conexión sin bloquear y expone
// WaitForReady para quien necesite esperar el primer READY.
//
//	srv, err := grpc.NewServer(grpc.DefaultServerConfig(7000))
//	if err != nil {
//		return err // fatal: el proceso no arranca degradado
//	}
//	rpc.RegisterRelayServer(srv.GRPCServer(), service)
//	go srv.Serve(ctx)
//
// Los interceptors de logging escriben con telemetry.Client; los de tracing
// propagan el trace-id por metadata.
package grpc
