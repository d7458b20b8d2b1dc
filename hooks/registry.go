package hooks

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds registered hooks and receipts, guarded by a single
// mutex since concurrent ticks may register or query the same registry.
// Storage is phase-indexed with priority ordering.
type Registry struct {
	mu       sync.Mutex
	hooks    map[string]*Hook
	byPhase  map[Phase][]string // hook ids registered in this phase, insertion order
	receipts []HookReceipt
	nextSeq  int
}

// NewRegistry returns an empty hook registry.
func NewRegistry() *Registry {
	return &Registry{
		hooks:   make(map[string]*Hook),
		byPhase: make(map[Phase][]string),
	}
}

// Register runs every poka-yoke rule (pokayoke.go) against h and adds
// it to the registry iff none of the triggered violations block.
// WARNING-severity violations (cycles, dangling chain targets,
// unselective conditions) are returned alongside a nil error so the
// caller can log them without refusing the registration.
func (r *Registry) Register(h *Hook) ([]PokaYokeViolation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.hooks[h.ID]; exists {
		return nil, fmt.Errorf("hook %q is already registered", h.ID)
	}

	violations := CheckRegistration(h, r.hooks, r.byPhase[h.Phase])
	if Blocking(violations) {
		return violations, fmt.Errorf("hook %q rejected: %+v", h.ID, violations)
	}

	h.insertionSeq = r.nextSeq
	r.nextSeq++
	r.hooks[h.ID] = h
	r.byPhase[h.Phase] = append(r.byPhase[h.Phase], h.ID)
	return violations, nil
}

// Unregister removes a hook by id.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.hooks[id]
	if !ok {
		return fmt.Errorf("hook %q not found", id)
	}
	delete(r.hooks, id)
	ids := r.byPhase[h.Phase]
	for i, existingID := range ids {
		if existingID == id {
			r.byPhase[h.Phase] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns the hook registered under id.
func (r *Registry) Get(id string) (*Hook, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.hooks[id]
	return h, ok
}

// GetAll returns every registered hook in no particular order.
func (r *Registry) GetAll() []*Hook {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Hook, 0, len(r.hooks))
	for _, h := range r.hooks {
		out = append(out, h)
	}
	return out
}

// GetByPhase returns enabled hooks registered in phase, ordered by
// descending priority; ties broken by insertion order.
func (r *Registry) GetByPhase(phase Phase) []*Hook {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Hook
	for _, id := range r.byPhase[phase] {
		h := r.hooks[id]
		if h.Enabled {
			out = append(out, h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].insertionSeq < out[j].insertionSeq
	})
	return out
}

// Enable marks a hook enabled.
func (r *Registry) Enable(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.hooks[id]
	if !ok {
		return fmt.Errorf("hook %q not found", id)
	}
	h.Enabled = true
	return nil
}

// Disable marks a hook disabled.
func (r *Registry) Disable(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.hooks[id]
	if !ok {
		return fmt.Errorf("hook %q not found", id)
	}
	h.Enabled = false
	return nil
}

// AddReceipt appends a receipt.
func (r *Registry) AddReceipt(receipt HookReceipt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.receipts = append(r.receipts, receipt)
}

// ReceiptFilter narrows GetReceipts; zero value matches everything.
type ReceiptFilter struct {
	HookID string
	Phase  Phase
}

// GetReceipts returns receipts matching filter, sorted newest-first.
func (r *Registry) GetReceipts(filter ReceiptFilter) []HookReceipt {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []HookReceipt
	for i := len(r.receipts) - 1; i >= 0; i-- {
		rec := r.receipts[i]
		if filter.HookID != "" && rec.HookID != filter.HookID {
			continue
		}
		if filter.Phase != "" && rec.Phase != filter.Phase {
			continue
		}
		out = append(out, rec)
	}
	return out
}
