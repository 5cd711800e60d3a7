// Package options defines the process-wide key/value configuration store
// the access gate reads and writes.
package options

import "sync"

// Persisted option names.
const (
	AllowedIPs         = "allowedIps"
	SecretKey          = "secretKey"
	KeyLastChangedDate = "keyLastChangedDate"
)

// Store is a dumb durable map. Implementations do no validation.
type Store interface {
	Get(name, def string) (string, error)
	Set(name, value string) error
	Delete(name string) error
}

// Memory is an in-process Store, used by tests and as a scratch store.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(name, def string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[name]
	if !ok {
		return def, nil
	}
	return v, nil
}

func (m *Memory) Set(name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[name] = value
	return nil
}

func (m *Memory) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, name)
	return nil
}

// Uninstall removes every option the gate owns. It is the teardown hook and
// is never called during normal operation.
func Uninstall(s Store) error {
	for _, name := range []string{AllowedIPs, SecretKey, KeyLastChangedDate} {
		if err := s.Delete(name); err != nil {
			return err
		}
	}
	return nil
}
