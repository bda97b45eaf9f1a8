package system

import (
	"context"
	"errors"
	"testing"
)

type probe struct {
	name     string
	startErr error
	started  bool
	stopped  bool
}

func (p *probe) Name() string { return p.name }

func (p *probe) Start(context.Context) error {
	if p.startErr != nil {
		return p.startErr
	}
	p.started = true
	return nil
}

func (p *probe) Stop(context.Context) error {
	p.stopped = true
	return nil
}

func TestManagerStartsAndStopsInOrder(t *testing.T) {
	m := NewManager()
	a := &probe{name: "a"}
	b := &probe{name: "b"}

	for _, svc := range []*probe{a, b} {
		if err := m.Register(svc); err != nil {
			t.Fatalf("register %s: %v", svc.name, err)
		}
	}

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !a.started || !b.started {
		t.Fatal("services not started")
	}

	if err := m.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !a.stopped || !b.stopped {
		t.Fatal("services not stopped")
	}
}

func TestManagerRollsBackOnStartFailure(t *testing.T) {
	m := NewManager()
	a := &probe{name: "a"}
	b := &probe{name: "b", startErr: errors.New("boom")}

	if err := m.Register(a); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.Register(b); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := m.Start(context.Background()); err == nil {
		t.Fatal("expected start error")
	}
	if !a.stopped {
		t.Fatal("expected started services to be rolled back")
	}
}

func TestManagerRejectsDuplicateNames(t *testing.T) {
	m := NewManager()
	if err := m.Register(NoopService{ServiceName: "dup"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.Register(NoopService{ServiceName: "dup"}); err == nil {
		t.Fatal("expected duplicate name error")
	}
}

func TestManagerRejectsRegisterAfterStart(t *testing.T) {
	m := NewManager()
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Register(NoopService{ServiceName: "late"}); err == nil {
		t.Fatal("expected error registering after start")
	}
}
