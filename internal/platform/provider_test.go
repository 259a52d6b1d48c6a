package platform

import (
	"errors"
	"testing"
)

func TestNewProvider_UnknownHost(t *testing.T) {
	_, err := NewProvider("no-such-host", Options{})
	if err == nil {
		t.Fatal("expected error for unknown host")
	}
	if !errors.Is(err, ErrUnknownHost) {
		t.Errorf("expected ErrUnknownHost, got: %v", err)
	}
}

func TestRegister_AndNewProvider(t *testing.T) {
	Register("test-provider", func(opts Options) (*Provider, error) {
		return &Provider{}, nil
	})

	p, err := NewProvider("test-provider", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "test-provider" {
		t.Errorf("Name = %q, want test-provider", p.Name)
	}
	if err := p.Shutdown(); err != nil {
		t.Errorf("Shutdown with nil Close: %v", err)
	}

	found := false
	for _, h := range Hosts() {
		if h == "test-provider" {
			found = true
		}
	}
	if !found {
		t.Error("Hosts() should list test-provider")
	}
}

func TestRegister_DuplicatePanics(t *testing.T) {
	Register("dup-provider", func(opts Options) (*Provider, error) { return &Provider{}, nil })
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	Register("dup-provider", func(opts Options) (*Provider, error) { return &Provider{}, nil })
}

func TestNewProvider_FactoryError(t *testing.T) {
	Register("failing-provider", func(opts Options) (*Provider, error) {
		return nil, errors.New("boom")
	})
	_, err := NewProvider("failing-provider", Options{})
	if err == nil || err.Error() != "host failing-provider: boom" {
		t.Errorf("unexpected error: %v", err)
	}
}
