package remote

import (
	"context"
	"sync"
)

// EndpointProvider lists reachable endpoints (host:port) for a
// fully-qualified gRPC service name. Implementations may integrate with a
// discovery system and must be safe for concurrent use.
type EndpointProvider interface {
	Endpoints(ctx context.Context, service string) ([]string, error)
}

// StaticEndpoints is a provider backed by an in-memory map keyed by
// service name.
type StaticEndpoints struct {
	mu   sync.RWMutex
	data map[string][]string
}

func NewStaticEndpoints(m map[string][]string) *StaticEndpoints {
	cp := make(map[string][]string, len(m))
	for k, v := range m {
		vv := make([]string, len(v))
		copy(vv, v)
		cp[k] = vv
	}
	return &StaticEndpoints{data: cp}
}

// Set replaces the endpoint list for a service.
func (s *StaticEndpoints) Set(service string, endpoints []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vv := make([]string, len(endpoints))
	copy(vv, endpoints)
	s.data[service] = vv
}

func (s *StaticEndpoints) Endpoints(ctx context.Context, service string) ([]string, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.data[service]
	if len(arr) == 0 {
		return nil, ErrNoEndpoints
	}
	out := make([]string, len(arr))
	copy(out, arr)
	return out, nil
}
