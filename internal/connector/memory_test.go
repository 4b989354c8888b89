package connector

import (
	"context"
	"testing"

	"github.com/Bayer-Group/phenex-go/internal/relation"
)

func sampleTable() *relation.MemoryTable {
	return relation.NewMemoryTable(
		[]string{relation.ColPersonID, relation.ColValue},
		[]relation.Row{
			{relation.ColPersonID: "p1", relation.ColValue: 1.0},
			{relation.ColPersonID: "p2", relation.ColValue: 2.0},
		},
	)
}

func TestMemoryConnectorCreateAndGet(t *testing.T) {
	c := NewMemoryConnector()
	ctx := context.Background()

	if _, err := c.CreateTable(ctx, sampleTable(), "n1", false); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	got, err := c.GetTable(ctx, "n1")
	if err != nil {
		t.Fatalf("GetTable: %v", err)
	}
	if len(got.ToNative()) != 2 {
		t.Errorf("got %d rows, want 2", len(got.ToNative()))
	}
}

func TestMemoryConnectorCreateWithoutOverwriteRejectsDuplicate(t *testing.T) {
	c := NewMemoryConnector()
	ctx := context.Background()

	c.CreateTable(ctx, sampleTable(), "n1", false)
	if _, err := c.CreateTable(ctx, sampleTable(), "n1", false); err == nil {
		t.Error("expected an error creating a duplicate table with overwrite=false")
	}
}

func TestMemoryConnectorOverwriteReplaces(t *testing.T) {
	c := NewMemoryConnector()
	ctx := context.Background()

	c.CreateTable(ctx, sampleTable(), "n1", false)
	replacement := relation.NewMemoryTable([]string{relation.ColPersonID}, []relation.Row{{relation.ColPersonID: "p3"}})
	if _, err := c.CreateTable(ctx, replacement, "n1", true); err != nil {
		t.Fatalf("CreateTable with overwrite: %v", err)
	}
	got, _ := c.GetTable(ctx, "n1")
	if len(got.ToNative()) != 1 {
		t.Errorf("got %d rows after overwrite, want 1", len(got.ToNative()))
	}
}

func TestMemoryConnectorGetMissing(t *testing.T) {
	c := NewMemoryConnector()
	if _, err := c.GetTable(context.Background(), "nope"); err == nil {
		t.Error("expected a LookupError for a missing table")
	}
}

func TestMemoryConnectorListAndDrop(t *testing.T) {
	c := NewMemoryConnector()
	ctx := context.Background()
	c.CreateTable(ctx, sampleTable(), "a", false)
	c.CreateTable(ctx, sampleTable(), "b", false)

	names, err := c.ListTables(ctx)
	if err != nil {
		t.Fatalf("ListTables: %v", err)
	}
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("ListTables = %v, want sorted [a b]", names)
	}

	if err := c.DropTable(ctx, "a"); err != nil {
		t.Fatalf("DropTable: %v", err)
	}
	names, _ = c.ListTables(ctx)
	if len(names) != 1 || names[0] != "b" {
		t.Errorf("after drop, ListTables = %v, want [b]", names)
	}
}
