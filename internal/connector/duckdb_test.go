//go:build integration

package connector

import (
	"context"
	"testing"

	"github.com/Bayer-Group/phenex-go/internal/relation"
)

func TestDuckDBConnectorCreateGetDrop(t *testing.T) {
	c, err := OpenDuckDB(":memory:")
	if err != nil {
		t.Fatalf("OpenDuckDB: %v", err)
	}
	defer c.Close()
	ctx := context.Background()

	_, err = c.CreateTable(ctx, sampleTable(), "n1", false)
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	got, err := c.GetTable(ctx, "n1")
	if err != nil {
		t.Fatalf("GetTable: %v", err)
	}
	if len(got.ToNative()) != 2 {
		t.Errorf("got %d rows, want 2", len(got.ToNative()))
	}

	names, err := c.ListTables(ctx)
	if err != nil {
		t.Fatalf("ListTables: %v", err)
	}
	if len(names) != 1 || names[0] != "n1" {
		t.Errorf("ListTables = %v, want [n1]", names)
	}

	if err := c.DropTable(ctx, "n1"); err != nil {
		t.Fatalf("DropTable: %v", err)
	}
	if _, err := c.GetTable(ctx, "n1"); err == nil {
		t.Error("expected an error reading a dropped table")
	}
}

func TestDuckDBConnectorOverwrite(t *testing.T) {
	c, err := OpenDuckDB(":memory:")
	if err != nil {
		t.Fatalf("OpenDuckDB: %v", err)
	}
	defer c.Close()
	ctx := context.Background()

	c.CreateTable(ctx, sampleTable(), "n1", false)
	replacement := relation.NewMemoryTable([]string{relation.ColPersonID}, []relation.Row{{relation.ColPersonID: "p9"}})
	if _, err := c.CreateTable(ctx, replacement, "n1", true); err != nil {
		t.Fatalf("CreateTable with overwrite: %v", err)
	}
	got, _ := c.GetTable(ctx, "n1")
	if len(got.ToNative()) != 1 {
		t.Errorf("got %d rows after overwrite, want 1", len(got.ToNative()))
	}
}
