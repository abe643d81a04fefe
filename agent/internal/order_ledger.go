package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/xKoRx/echo/sdk/domain"
)

const (
	confirmedBucket = "confirmed"
	pendingBucket   = "pending"
	configBucket    = "config"
)

// Mapping asociación orden origen → orden destino.
type Mapping struct {
	LinkID             string           `json:"link_id"`
	SourceAccount      string           `json:"source_account"`
	SourceOrderID      int64            `json:"source_order_id"`
	DestinationOrderID string           `json:"destination_order_id"`
	Symbol             string           `json:"symbol"`
	OrderType          domain.OrderType `json:"order_type"`
	Volume             float64          `json:"volume"`
	CreatedAt          time.Time        `json:"created_at"`
}

// OrderLedger ledger de reconciliación persistido en bbolt.
//
// Buckets:
//   - confirmed: copias ejecutadas (posiciones)
//   - pending: resting creadas por el fallback o por copia de pendientes
//   - config: snapshots de configuración aplicados
//
// Un source order tiene a lo sumo una entrada entre confirmed y pending.
type OrderLedger struct {
	db *bolt.DB
}

// OpenOrderLedger abre (o crea) el ledger en path.
func OpenOrderLedger(path string) (*OrderLedger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir ledger path: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{confirmedBucket, pendingBucket, configBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}
	return &OrderLedger{db: db}, nil
}

// Close cierra la base.
func (l *OrderLedger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

func mappingKey(sourceAccount string, sourceOrderID int64) []byte {
	return []byte(sourceAccount + "/" + strconv.FormatInt(sourceOrderID, 10))
}

// Confirmed mapping confirmado de una orden origen.
func (l *OrderLedger) Confirmed(sourceAccount string, sourceOrderID int64) (Mapping, bool, error) {
	return l.get(confirmedBucket, sourceAccount, sourceOrderID)
}

// Pending mapping resting de una orden origen.
func (l *OrderLedger) Pending(sourceAccount string, sourceOrderID int64) (Mapping, bool, error) {
	return l.get(pendingBucket, sourceAccount, sourceOrderID)
}

// Has indica si la orden origen ya tiene alguna copia.
func (l *OrderLedger) Has(sourceAccount string, sourceOrderID int64) (bool, error) {
	found := false
	err := l.db.View(func(tx *bolt.Tx) error {
		key := mappingKey(sourceAccount, sourceOrderID)
		found = tx.Bucket([]byte(confirmedBucket)).Get(key) != nil ||
			tx.Bucket([]byte(pendingBucket)).Get(key) != nil
		return nil
	})
	return found, err
}

func (l *OrderLedger) get(bucket, sourceAccount string, sourceOrderID int64) (Mapping, bool, error) {
	var (
		m     Mapping
		found bool
	)
	err := l.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(bucket)).Get(mappingKey(sourceAccount, sourceOrderID))
		if len(data) == 0 {
			return nil
		}
		found = true
		return json.Unmarshal(data, &m)
	})
	return m, found, err
}

// PutConfirmed registra una copia ejecutada; elimina un pending previo.
func (l *OrderLedger) PutConfirmed(m Mapping) error {
	return l.put(confirmedBucket, pendingBucket, m)
}

// PutPending registra una resting; elimina un confirmado previo.
func (l *OrderLedger) PutPending(m Mapping) error {
	return l.put(pendingBucket, confirmedBucket, m)
}

func (l *OrderLedger) put(bucket, other string, m Mapping) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	key := mappingKey(m.SourceAccount, m.SourceOrderID)
	return l.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket([]byte(other)).Delete(key); err != nil {
			return err
		}
		return tx.Bucket([]byte(bucket)).Put(key, data)
	})
}

// DeleteConfirmed elimina el mapping confirmado.
func (l *OrderLedger) DeleteConfirmed(sourceAccount string, sourceOrderID int64) error {
	return l.delete(confirmedBucket, sourceAccount, sourceOrderID)
}

// DeletePending elimina el mapping resting.
func (l *OrderLedger) DeletePending(sourceAccount string, sourceOrderID int64) error {
	return l.delete(pendingBucket, sourceAccount, sourceOrderID)
}

func (l *OrderLedger) delete(bucket, sourceAccount string, sourceOrderID int64) error {
	return l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucket)).Delete(mappingKey(sourceAccount, sourceOrderID))
	})
}

// Promote mueve un pending a confirmed en una sola transacción.
func (l *OrderLedger) Promote(sourceAccount string, sourceOrderID int64, orderType domain.OrderType) error {
	key := mappingKey(sourceAccount, sourceOrderID)
	return l.db.Update(func(tx *bolt.Tx) error {
		pending := tx.Bucket([]byte(pendingBucket))
		data := pending.Get(key)
		if len(data) == 0 {
			return nil
		}
		var m Mapping
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		m.OrderType = orderType
		updated, err := json.Marshal(m)
		if err != nil {
			return err
		}
		if err := pending.Delete(key); err != nil {
			return err
		}
		return tx.Bucket([]byte(confirmedBucket)).Put(key, updated)
	})
}

// ListPending todos los mappings resting.
func (l *OrderLedger) ListPending() ([]Mapping, error) {
	var out []Mapping
	err := l.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(pendingBucket)).ForEach(func(_, v []byte) error {
			var m Mapping
			if err := json.Unmarshal(v, &m); err != nil {
				return nil
			}
			out = append(out, m)
			return nil
		})
	})
	return out, err
}

// SaveConfig persiste el último snapshot aplicado de un link (tombstones incluidos).
func (l *OrderLedger) SaveConfig(snap domain.ConfigSnapshot) error {
	if snap.Link.LinkID == "" {
		return errors.New("snapshot without link_id")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(configBucket)).Put([]byte(snap.Link.LinkID), data)
	})
}

// LoadConfigs snapshots aplicados antes del último reinicio.
func (l *OrderLedger) LoadConfigs() ([]domain.ConfigSnapshot, error) {
	var out []domain.ConfigSnapshot
	err := l.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(configBucket)).ForEach(func(_, v []byte) error {
			var snap domain.ConfigSnapshot
			if err := json.Unmarshal(v, &snap); err != nil {
				return fmt.Errorf("decode config snapshot: %w", err)
			}
			out = append(out, snap)
			return nil
		})
	})
	return out, err
}
