package configurable

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/billvsme/langchain/internal/runnable"
)

// mockUnit is a Rebuildable test double standing in for a model-like unit
// with two constructor-level fields. Rebuilt copies share the parent's call
// log so tests can observe the whole call tree.
type mockUnit struct {
	name        string
	temperature float64
	model       string

	fail  error         // when set, every invocation fails with it
	delay time.Duration // per-invocation sleep, for concurrency tests

	log *callLog
}

type callLog struct {
	mu          sync.Mutex
	invokes     []string
	batches     int
	abatches    int
	streams     int
	inflight    int
	maxInflight int
}

func (l *callLog) recordInvoke(input string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.invokes = append(l.invokes, input)
}

func (l *callLog) enter() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inflight++
	if l.inflight > l.maxInflight {
		l.maxInflight = l.inflight
	}
}

func (l *callLog) exit() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inflight--
}

func newMockUnit(name string, temperature float64, model string) *mockUnit {
	return &mockUnit{name: name, temperature: temperature, model: model, log: &callLog{}}
}

var _ runnable.Rebuildable[string, string] = (*mockUnit)(nil)
var _ runnable.FieldDeclarer = (*mockUnit)(nil)

func (m *mockUnit) Invoke(ctx context.Context, input string, config *runnable.Config) (string, error) {
	m.log.recordInvoke(input)
	m.log.enter()
	defer m.log.exit()
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if m.fail != nil {
		return "", m.fail
	}
	return fmt.Sprintf("%s(temp=%v,model=%s) %s", m.name, m.temperature, m.model, input), nil
}

func (m *mockUnit) AInvoke(ctx context.Context, input string, config *runnable.Config) *runnable.Future[string] {
	return runnable.GoFuture(func() (string, error) { return m.Invoke(ctx, input, config) })
}

func (m *mockUnit) Batch(ctx context.Context, inputs []string, configs []*runnable.Config, opts runnable.BatchOptions) ([]runnable.Result[string], error) {
	m.log.mu.Lock()
	m.log.batches++
	m.log.mu.Unlock()
	return m.runAll(ctx, inputs, configs, opts)
}

func (m *mockUnit) ABatch(ctx context.Context, inputs []string, configs []*runnable.Config, opts runnable.BatchOptions) ([]runnable.Result[string], error) {
	m.log.mu.Lock()
	m.log.abatches++
	m.log.mu.Unlock()
	return m.runAll(ctx, inputs, configs, opts)
}

func (m *mockUnit) runAll(ctx context.Context, inputs []string, configs []*runnable.Config, opts runnable.BatchOptions) ([]runnable.Result[string], error) {
	cfgs, err := runnable.ConfigList(configs, len(inputs))
	if err != nil {
		return nil, err
	}
	results := make([]runnable.Result[string], len(inputs))
	for i, input := range inputs {
		v, err := m.Invoke(ctx, input, cfgs[i])
		if err != nil && !opts.ReturnExceptions {
			return nil, err
		}
		results[i] = runnable.Result[string]{Value: v, Err: err}
	}
	return results, nil
}

func (m *mockUnit) Stream(ctx context.Context, input string, config *runnable.Config) (*runnable.Stream[string], error) {
	m.log.mu.Lock()
	m.log.streams++
	m.log.mu.Unlock()
	v, err := m.Invoke(ctx, input, config)
	if err != nil {
		return nil, err
	}
	// Two chunks, so stream consumers see more than one pull.
	half := len(v) / 2
	return runnable.StreamOf(v[:half], v[half:]), nil
}

func (m *mockUnit) Transform(ctx context.Context, input *runnable.Stream[string], config *runnable.Config) (*runnable.Stream[string], error) {
	return runnable.MapStream(input, func(chunk string) (string, error) {
		return m.Invoke(ctx, chunk, config)
	}), nil
}

func (m *mockUnit) ConfigSpecs() []runnable.FieldSpec { return nil }

func (m *mockUnit) Fields() map[string]any {
	return map[string]any{
		"temperature": m.temperature,
		"model":       m.model,
	}
}

func (m *mockUnit) Rebuild(overrides map[string]any) (runnable.Runnable[string, string], error) {
	next := *m
	for name, v := range overrides {
		switch name {
		case "temperature":
			t, ok := v.(float64)
			if !ok {
				return nil, fmt.Errorf("temperature: expected float64, got %T", v)
			}
			next.temperature = t
		case "model":
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("model: expected string, got %T", v)
			}
			next.model = s
		default:
			return nil, fmt.Errorf("%w: %q", runnable.ErrUnknownField, name)
		}
	}
	return &next, nil
}

func (m *mockUnit) FieldDecl(name string) (runnable.FieldDecl, bool) {
	switch name {
	case "temperature":
		return runnable.FieldDecl{Description: "Sampling temperature", Annotation: "float64"}, true
	case "model":
		return runnable.FieldDecl{Description: "Model identifier", Annotation: "string"}, true
	}
	return runnable.FieldDecl{}, false
}
