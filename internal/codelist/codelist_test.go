package codelist

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewUntyped(t *testing.T) {
	cl := New("sbp", "x", "y", "z")
	codes := cl.ToCodes()
	if len(codes) != 3 {
		t.Fatalf("got %d codes, want 3", len(codes))
	}
	for _, c := range codes {
		if c.CodeType != UntypedCode {
			t.Errorf("code %+v has non-empty code type", c)
		}
	}
}

func TestNewTyped(t *testing.T) {
	cl := NewTyped("atrial_fibrillation", map[string][]string{
		"ICD-9":  {"427.31"},
		"ICD-10": {"I48.0", "I48.1"},
	})
	codes := cl.ToCodes()
	if len(codes) != 3 {
		t.Fatalf("got %d codes, want 3", len(codes))
	}
	if codes[0].CodeType != "ICD-10" {
		t.Errorf("expected sorted code types, first was %q", codes[0].CodeType)
	}
}

func TestFromYAMLFlatList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sbp.yaml")
	if err := os.WriteFile(path, []byte("- x\n- y\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cl, err := FromYAML(path)
	if err != nil {
		t.Fatalf("FromYAML: %v", err)
	}
	if cl.Name != "sbp" {
		t.Errorf("Name = %q, want sbp", cl.Name)
	}
	if len(cl.ToCodes()) != 2 {
		t.Errorf("got %d codes, want 2", len(cl.ToCodes()))
	}
}

func TestFromYAMLTypedMapping(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "af.yaml")
	content := "ICD-9:\n  - \"427.31\"\nICD-10:\n  - \"I48.0\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cl, err := FromYAML(path)
	if err != nil {
		t.Fatalf("FromYAML: %v", err)
	}
	if len(cl.Mapping) != 2 {
		t.Errorf("got %d code types, want 2", len(cl.Mapping))
	}
}

func TestFromYAMLMissingFile(t *testing.T) {
	if _, err := FromYAML("/nonexistent/path.yaml"); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestCompositeCodelistUnion(t *testing.T) {
	a := New("a", "x", "y")
	b := New("b", "y", "z")
	cc := NewComposite("combined", a, b)
	codes := cc.ToCodes()
	if len(codes) != 3 {
		t.Fatalf("got %d codes, want 3 (deduplicated)", len(codes))
	}
}
