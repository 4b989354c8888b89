package serialize

import (
	"testing"
	"time"
)

type stubValue struct {
	Operator string
	Bound    float64
}

func (s stubValue) ClassName() string { return "Value" }
func (s stubValue) ToDict() Dict {
	return Dict{"class_name": s.ClassName(), "operator": s.Operator, "value": s.Bound}
}

func TestWrapUnwrapDatetimeRoundTrip(t *testing.T) {
	want := time.Date(2020, 5, 10, 0, 0, 0, 0, time.UTC)
	wrapped := WrapDatetime(want)
	got, ok := UnwrapDatetime(wrapped)
	if !ok {
		t.Fatal("UnwrapDatetime: not recognised as a wrapped datetime")
	}
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestUnwrapDatetimeRejectsPlainMap(t *testing.T) {
	if _, ok := UnwrapDatetime(Dict{"foo": "bar"}); ok {
		t.Error("expected a plain map to not be recognised as a wrapped datetime")
	}
}

func TestMarshalDeterministicKeyOrder(t *testing.T) {
	d := Dict{"c": 1, "a": 2, "b": 3, "class_name": "X"}
	out, err := Marshal(d)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(out) != `{"a":2,"b":3,"c":1,"class_name":"X"}` {
		t.Errorf("Marshal = %s, want sorted keys", out)
	}
}

func TestRegistryRoundTrip(t *testing.T) {
	reg := NewRegistry()
	reg.Register("Value", func(d Dict) (Serializable, error) {
		return stubValue{Operator: d["operator"].(string), Bound: d["value"].(float64)}, nil
	})

	original := stubValue{Operator: ">=", Bound: 18}
	rebuilt, err := reg.FromDict(original.ToDict())
	if err != nil {
		t.Fatalf("FromDict: %v", err)
	}
	if rebuilt.ToDict()["operator"] != original.ToDict()["operator"] {
		t.Errorf("round-trip mismatch: %+v vs %+v", rebuilt.ToDict(), original.ToDict())
	}
}

func TestFromDictUnknownClassName(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.FromDict(Dict{"class_name": "Nope"}); err == nil {
		t.Error("expected an error for an unregistered class_name")
	}
}

func TestFromDictMissingClassName(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.FromDict(Dict{}); err == nil {
		t.Error("expected an error for a dict with no class_name")
	}
}
