package connector

import (
	"context"
	"errors"
	"testing"

	"github.com/Bayer-Group/phenex-go/internal/relation"
)

type flakyConnector struct {
	failuresBeforeSuccess int
	calls                 int
}

func (f *flakyConnector) CreateTable(ctx context.Context, t relation.Table, name string, overwrite bool) (relation.Table, error) {
	f.calls++
	if f.calls <= f.failuresBeforeSuccess {
		return nil, errors.New("backend unavailable")
	}
	return t, nil
}

func (f *flakyConnector) GetTable(ctx context.Context, name string) (relation.Table, error) {
	return sampleTable(), nil
}

func (f *flakyConnector) ListTables(ctx context.Context) ([]string, error) {
	return []string{name0}, nil
}

func (f *flakyConnector) DropTable(ctx context.Context, name string) error {
	return nil
}

const name0 = "n0"

func fastResilientConfig() ResilientConfig {
	cfg := DefaultResilientConfig("test")
	cfg.RatePerSecond = 1000
	cfg.MaxRetries = 5
	return cfg
}

func TestResilientConnectorRetriesThenSucceeds(t *testing.T) {
	inner := &flakyConnector{failuresBeforeSuccess: 2}
	rc := NewResilientConnector(inner, fastResilientConfig())

	_, err := rc.CreateTable(context.Background(), sampleTable(), "n1", false)
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if inner.calls < 3 {
		t.Errorf("inner called %d times, want at least 3 (2 failures + 1 success)", inner.calls)
	}
}

func TestResilientConnectorPassesThroughOnSuccess(t *testing.T) {
	inner := &flakyConnector{failuresBeforeSuccess: 0}
	rc := NewResilientConnector(inner, fastResilientConfig())

	out, err := rc.CreateTable(context.Background(), sampleTable(), "n1", false)
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if len(out.ToNative()) != 2 {
		t.Errorf("got %d rows, want 2", len(out.ToNative()))
	}
}

func TestResilientConnectorListBypassesBreaker(t *testing.T) {
	inner := &flakyConnector{}
	rc := NewResilientConnector(inner, fastResilientConfig())

	names, err := rc.ListTables(context.Background())
	if err != nil {
		t.Fatalf("ListTables: %v", err)
	}
	if len(names) != 1 || names[0] != name0 {
		t.Errorf("got %v, want [%s]", names, name0)
	}
}
