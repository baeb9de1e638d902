package system

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Manager starts registered services in order and stops them in reverse.
type Manager struct {
	mu       sync.Mutex
	services []Service
	started  []Service
}

func NewManager() *Manager {
	return &Manager{}
}

// Register adds svc. Names must be unique.
func (m *Manager) Register(svc Service) error {
	if svc == nil {
		return errors.New("service is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.services {
		if existing.Name() == svc.Name() {
			return fmt.Errorf("service %q already registered", svc.Name())
		}
	}
	m.services = append(m.services, svc)
	return nil
}

// Start starts every service. On failure the already-started ones are stopped.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, svc := range m.services {
		if err := svc.Start(ctx); err != nil {
			m.stopLocked(ctx)
			return fmt.Errorf("start %s: %w", svc.Name(), err)
		}
		m.started = append(m.started, svc)
	}
	return nil
}

// Stop stops started services in reverse order and joins their errors.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopLocked(ctx)
}

func (m *Manager) stopLocked(ctx context.Context) error {
	var errs []error
	for i := len(m.started) - 1; i >= 0; i-- {
		svc := m.started[i]
		if err := svc.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop %s: %w", svc.Name(), err))
		}
	}
	m.started = nil
	return errors.Join(errs...)
}

// Names lists registered services in start order.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.services))
	for _, svc := range m.services {
		out = append(out, svc.Name())
	}
	return out
}
