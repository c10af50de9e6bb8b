package protocol

import (
	"fmt"
	"sort"
	"sync"
)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Dialer)
)

// Register makes a dialer available under the given driver name. It panics
// if called twice with the same name or with a nil dialer, mirroring the
// database/sql driver convention.
func Register(name string, dialer Dialer) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if dialer == nil {
		panic("protocol: Register dialer is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("protocol: Register called twice for driver " + name)
	}
	drivers[name] = dialer
}

// Open returns the dialer registered under the given name.
func Open(name string) (Dialer, error) {
	driversMu.RLock()
	dialer, ok := drivers[name]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("protocol: unknown driver %q (forgotten import?)", name)
	}
	return dialer, nil
}

// Drivers returns a sorted list of registered driver names.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	list := make([]string, 0, len(drivers))
	for name := range drivers {
		list = append(list, name)
	}
	sort.Strings(list)
	return list
}
