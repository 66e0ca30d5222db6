package source

import (
	"testing"

	"upowerd/internal/device"
)

func TestRegisterAndLookup(t *testing.T) {
	const name = "test_dummy_adapter"
	if _, ok := Lookup(name); ok {
		t.Skip("builder already registered by earlier test run")
	}
	RegisterBuilder(name, BuilderFunc(func(params map[string]string) (Adapter, error) {
		return NewDummyAdapter(nil, map[string]device.RawSnapshot{}), nil
	}))
	if _, ok := Lookup(name); !ok {
		t.Fatalf("lookup failed for %q", name)
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	const name = "test_duplicate_adapter"
	if _, ok := Lookup(name); !ok {
		RegisterBuilder(name, BuilderFunc(func(params map[string]string) (Adapter, error) {
			return nil, nil
		}))
	}
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	RegisterBuilder(name, BuilderFunc(func(params map[string]string) (Adapter, error) {
		return nil, nil
	}))
}
