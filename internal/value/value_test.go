package value

import (
	"testing"
	"time"
)

func TestValueSatisfies(t *testing.T) {
	v := GreaterThanOrEqualValue(18)

	cases := []struct {
		x    float64
		want bool
	}{
		{17, false},
		{18, true},
		{19, true},
	}
	for _, c := range cases {
		if got := v.Satisfies(c.x); got != c.want {
			t.Errorf("Satisfies(%v) = %v, want %v", c.x, got, c.want)
		}
	}
}

func TestValueShortString(t *testing.T) {
	cases := []struct {
		v    Value
		want string
	}{
		{GreaterThanOrEqualValue(18), "ge18"},
		{LessThanOrEqualValue(65), "le65"},
		{LessThanOrEqualValue(65.5), "le65.5"},
		{GreaterThanValue(0), "g0"},
	}
	for _, c := range cases {
		if got := c.v.ShortString(); got != c.want {
			t.Errorf("ShortString() = %q, want %q", got, c.want)
		}
	}
}

func TestValueInvalidOperator(t *testing.T) {
	if _, err := New("!=", 1); err == nil {
		t.Error("expected an error for an unrecognised operator")
	}
}

func TestDateValueSatisfies(t *testing.T) {
	cutoff := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	v := AfterOrOn(cutoff)

	if v.Satisfies(time.Date(2019, 12, 31, 0, 0, 0, 0, time.UTC)) {
		t.Error("expected 2019-12-31 to fail AfterOrOn(2020-01-01)")
	}
	if !v.Satisfies(time.Date(2020, 1, 1, 23, 59, 0, 0, time.UTC)) {
		t.Error("expected the time-of-day component to be ignored")
	}
}

func TestParseDate(t *testing.T) {
	v, err := ParseDate(LessThan, "2021-06-15")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	want := time.Date(2021, 6, 15, 0, 0, 0, 0, time.UTC)
	if !v.Bound.Equal(want) {
		t.Errorf("Bound = %v, want %v", v.Bound, want)
	}

	if _, err := ParseDate(LessThan, "15/06/2021"); err == nil {
		t.Error("expected an error for a non-ISO date string")
	}
}

func TestDateValueShortString(t *testing.T) {
	v := Before(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	if got, want := v.ShortString(), "l2020-01-01"; got != want {
		t.Errorf("ShortString() = %q, want %q", got, want)
	}
}

func TestValueToDict(t *testing.T) {
	v := GreaterThanOrEqualValue(18)
	d := v.ToDict()
	if d["class_name"] != "Value" || d["operator"] != ">=" || d["value"] != 18.0 {
		t.Errorf("ToDict() = %+v, unexpected shape", d)
	}
}

func TestDateValueToDictWrapsDatetime(t *testing.T) {
	v := AfterOrOn(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	d := v.ToDict()
	wrapped, ok := d["value"].(map[string]interface{})
	if !ok {
		t.Fatalf("ToDict()[\"value\"] is not a wrapped datetime map: %+v", d["value"])
	}
	if _, ok := wrapped["__datetime__"]; !ok {
		t.Errorf("wrapped datetime map missing __datetime__ key: %+v", wrapped)
	}
}
