// Package providers generalizes the llm-service DefaultProviderManager
// registry/health-check/metrics loop to the five external
// collaborators the Pipeline Orchestrator calls out to (OCR, entity
// recognition, LLM refinement, web capture, PDF rasterization). Each
// kind keeps its own typed client (ocr.go, entity.go, llm.go,
// webcapture.go, pdf.go); this file
// only manages lifecycle and health.
package providers

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Provider is the lifecycle surface every typed client implements, on
// top of its own kind-specific Process-like method.
type Provider interface {
	Name() string
	HealthCheck(ctx context.Context) error
	Close() error
}

// Status mirrors llm-service's ProviderStatus, trimmed to the fields
// a generic manager can fill in without knowing the provider's
// payload type.
type Status struct {
	Name         string        `json:"name"`
	Available    bool          `json:"available"`
	LastCheck    time.Time     `json:"last_check"`
	ResponseTime time.Duration `json:"response_time"`
	ErrorCount   int           `json:"error_count"`
	SuccessCount int           `json:"success_count"`
}

// ManagerConfig configures the health-check loop.
type ManagerConfig struct {
	HealthCheckInterval time.Duration
	DefaultTimeout      time.Duration
}

// Manager registers providers of a single kind (e.g. all OCR
// providers) and keeps their availability status current.
type Manager struct {
	mu        sync.RWMutex
	providers map[string]Provider
	status    map[string]*Status
	config    ManagerConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager constructs an empty Manager. Start must be called to
// begin the background health-check loop.
func NewManager(config ManagerConfig) *Manager {
	if config.HealthCheckInterval <= 0 {
		config.HealthCheckInterval = 30 * time.Second
	}
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = 10 * time.Second
	}
	return &Manager{
		providers: make(map[string]Provider),
		status:    make(map[string]*Status),
		config:    config,
	}
}

// RegisterProvider adds p under name, marking it available until the
// first health check proves otherwise.
func (m *Manager) RegisterProvider(name string, p Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[name] = p
	m.status[name] = &Status{Name: name, Available: true, LastCheck: time.Now()}
}

// GetProvider returns the provider registered as name.
func (m *Manager) GetProvider(name string) (Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q is not registered", name)
	}
	return p, nil
}

// ListAvailable returns the names of every currently-available
// provider, in registration order not guaranteed.
func (m *Manager) ListAvailable() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		if m.status[name].Available {
			names = append(names, name)
		}
	}
	return names
}

// RecordResult updates a provider's rolling status after a call, used
// by stage code immediately after invoking the typed client.
func (m *Manager) RecordResult(name string, latency time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.status[name]
	if !ok {
		return
	}
	st.ResponseTime = latency
	if err != nil {
		st.ErrorCount++
	} else {
		st.SuccessCount++
	}
}

// GetStatus returns a copy of one provider's status.
func (m *Manager) GetStatus(name string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.status[name]
	if !ok {
		return Status{}, false
	}
	return *st, true
}

// GetAllStatus returns a copy of every provider's status.
func (m *Manager) GetAllStatus() map[string]Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Status, len(m.status))
	for name, st := range m.status {
		out[name] = *st
	}
	return out
}

// Start launches the background health-check loop.
func (m *Manager) Start(ctx context.Context) {
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.wg.Add(1)
	go m.healthCheckLoop()
}

// Stop cancels the health-check loop and closes every provider.
func (m *Manager) Stop() error {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()

	m.mu.RLock()
	defer m.mu.RUnlock()
	var firstErr error
	for _, p := range m.providers {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *Manager) healthCheckLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.config.HealthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.checkAll()
		}
	}
}

func (m *Manager) checkAll() {
	m.mu.RLock()
	names := make([]string, 0, len(m.providers))
	providers := make(map[string]Provider, len(m.providers))
	for name, p := range m.providers {
		names = append(names, name)
		providers[name] = p
	}
	m.mu.RUnlock()

	for _, name := range names {
		p := providers[name]
		go func(name string, p Provider) {
			ctx, cancel := context.WithTimeout(m.ctx, m.config.DefaultTimeout)
			defer cancel()
			start := time.Now()
			err := p.HealthCheck(ctx)
			elapsed := time.Since(start)

			m.mu.Lock()
			defer m.mu.Unlock()
			st, ok := m.status[name]
			if !ok {
				return
			}
			st.LastCheck = time.Now()
			st.ResponseTime = elapsed
			st.Available = err == nil
		}(name, p)
	}
}
