// internal/app/bootstrap/closers.go
package bootstrap

import "sync"

// closers collects background resources started by BuildHandler (the
// session-state sweeper, the login limiter cleanup) so Shutdown can stop
// them. They run in reverse order of registration.
type closers struct {
	mu  sync.Mutex
	fns []func()
}

var appClosers closers

func (c *closers) add(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fns = append(c.fns, fn)
}

func (c *closers) closeAll() {
	c.mu.Lock()
	fns := c.fns
	c.fns = nil
	c.mu.Unlock()
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}
