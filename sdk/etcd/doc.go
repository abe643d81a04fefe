// Package etcd cliente mínimo de etcd usado como overlay de configuración.
//
// Las claves siguen el patrón `/APP/ENV/VAR_KEY`. El relay y el agente leen
// todas las claves bajo su namespace y las superponen sobre la configuración
// local (ver core/internal/config.go y agent/internal/config.go).
//
//	client, err := etcd.New(etcd.WithApp("echo-relay"), etcd.WithEnv("production"))
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	vars, _ := client.GetAll(ctx)
//	interval, _ := client.GetVarDurationWithDefault(ctx, "heartbeat_interval_ms", time.Second)
package etcd
