package etcd

import (
	"context"
	"strings"
)

// Setter destino de un overlay. *viper.Viper lo implementa.
type Setter interface {
	Set(key string, value any)
}

// Overlay copia el namespace completo sobre dst con prioridad máxima.
//
// Las claves relativas se traducen a la notación de viper:
// "relay/grpc_port" → "relay.grpc_port". Retorna cuántas claves aplicó.
func (c *Client) Overlay(ctx context.Context, dst Setter) (int, error) {
	vars, err := c.GetAll(ctx)
	if err != nil {
		return 0, err
	}
	applied := 0
	for key, value := range vars {
		key = strings.Trim(key, "/")
		if key == "" {
			continue
		}
		dst.Set(strings.ReplaceAll(key, "/", "."), value)
		applied++
	}
	return applied, nil
}
