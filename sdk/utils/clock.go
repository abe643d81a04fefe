package utils

import (
	"sync"
	"time"
)

// Clock fuente de tiempo inyectable.
type Clock interface {
	Now() time.Time
}

// SystemClock reloj real. time.Now incluye lectura monotónica, así que las
// restas entre valores obtenidos aquí no se ven afectadas por ajustes de reloj.
type SystemClock struct{}

// Now implementa Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// FakeClock reloj manual para tests.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock crea un FakeClock en t.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t}
}

// Now implementa Clock.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance avanza el reloj d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Set fija el reloj en t.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}
