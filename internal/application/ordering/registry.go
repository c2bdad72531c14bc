package ordering

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// formRegistry holds mounted forms and unmounts the ones left idle.
type formRegistry struct {
	mu        sync.RWMutex
	forms     map[uuid.UUID]*form
	ttl       time.Duration
	logger    *zap.Logger
	metrics   Metrics
	stopChan  chan struct{}
	closeOnce sync.Once
	now       func() time.Time
}

func newFormRegistry(ttl time.Duration, logger *zap.Logger, metrics Metrics) *formRegistry {
	return &formRegistry{
		forms:    make(map[uuid.UUID]*form),
		ttl:      ttl,
		logger:   logger,
		metrics:  metrics,
		stopChan: make(chan struct{}),
		now:      time.Now,
	}
}

func (r *formRegistry) put(f *form) {
	r.mu.Lock()
	r.forms[f.id] = f
	r.mu.Unlock()
	r.metrics.FormsActive(1)
}

func (r *formRegistry) get(id uuid.UUID) (*form, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.forms[id]
	return f, ok
}

func (r *formRegistry) remove(id uuid.UUID) (*form, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.forms[id]
	if ok {
		delete(r.forms, id)
		r.metrics.FormsActive(-1)
	}
	return f, ok
}

func (r *formRegistry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.forms)
}

// run sweeps idle forms every period until close is called
func (r *formRegistry) run(period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopChan:
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

// sweep unmounts forms idle for longer than the TTL
func (r *formRegistry) sweep() int {
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	var expired []*form
	for id, f := range r.forms {
		f.mu.Lock()
		idle := f.lastSeen.Before(cutoff)
		f.mu.Unlock()
		if idle {
			expired = append(expired, f)
			delete(r.forms, id)
		}
	}
	r.mu.Unlock()

	if len(expired) > 0 {
		r.metrics.FormsActive(-int64(len(expired)))
	}
	for _, f := range expired {
		f.finder.Shutdown()
		r.logger.Debug("Evicted idle order form", zap.String("form_id", f.id.String()))
	}
	return len(expired)
}

func (r *formRegistry) close() {
	r.closeOnce.Do(func() {
		close(r.stopChan)

		r.mu.Lock()
		forms := r.forms
		r.forms = make(map[uuid.UUID]*form)
		r.mu.Unlock()

		if len(forms) > 0 {
			r.metrics.FormsActive(-int64(len(forms)))
		}
		for _, f := range forms {
			f.finder.Shutdown()
		}
	})
}
