package transport

import (
	"fmt"
	"sort"
	"sync"
)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Transport)
)

// Register makes a transport implementation available under the given
// driver name, in the manner of database/sql drivers. Implementations are
// expected to call Register from an init function; the embedding program
// links the driver in with a blank import.
func Register(name string, t Transport) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if t == nil {
		panic("transport: Register driver is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("transport: Register called twice for driver " + name)
	}
	drivers[name] = t
}

// Open returns the transport registered under the driver name.
func Open(name string) (Transport, error) {
	driversMu.RLock()
	defer driversMu.RUnlock()
	t, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("transport: unknown driver %q (forgotten import?)", name)
	}
	return t, nil
}

// Drivers lists the registered driver names, sorted.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
