package value

import (
	"testing"
	"time"
)

func TestValueNativeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   any
	}{
		{"int", int64(42)},
		{"float", 3.14},
		{"text", "hello"},
		{"bytes", []byte("raw")},
		{"bool", true},
		{"nil", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := FromNative(tt.in)

			got := v.Native()
			if tt.name == "bytes" {
				gb, ok := got.([]byte)
				if !ok || string(gb) != string(tt.in.([]byte)) {
					t.Fatalf("expected %v, got %v", tt.in, got)
				}

				return
			}

			if got != tt.in {
				t.Fatalf("expected %v, got %v", tt.in, got)
			}
		})
	}
}

func TestValueTimestampRoundTrip(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	v := FromNative(now)
	if v.Kind != Timestamp {
		t.Fatalf("expected Timestamp kind, got %v", v.Kind)
	}

	got, ok := v.AsTime()
	if !ok || !got.Equal(now) {
		t.Fatalf("expected %v, got %v", now, got)
	}
}

func TestValueIsNull(t *testing.T) {
	if !NullValue().IsNull() {
		t.Fatal("expected NullValue to be null")
	}

	if IntValue(0).IsNull() {
		t.Fatal("expected IntValue(0) not to be null")
	}
}

func TestRowGetAndNames(t *testing.T) {
	row := Row{
		{Name: "id", Value: IntValue(1)},
		{Name: "name", Value: TextValue("alice")},
	}

	v, ok := row.Get("name")
	if !ok {
		t.Fatal("expected to find column name")
	}

	if s, _ := v.AsText(); s != "alice" {
		t.Fatalf("expected alice, got %s", s)
	}

	if _, ok := row.Get("missing"); ok {
		t.Fatal("expected missing column to not be found")
	}

	names := row.Names()
	if len(names) != 2 || names[0] != "id" || names[1] != "name" {
		t.Fatalf("unexpected names: %v", names)
	}
}

func TestParamListNative(t *testing.T) {
	params := ParamList{IntValue(1), TextValue("x"), NullValue()}

	native := params.Native()
	if len(native) != 3 {
		t.Fatalf("expected 3 native params, got %d", len(native))
	}

	if native[0] != int64(1) || native[1] != "x" || native[2] != nil {
		t.Fatalf("unexpected native params: %v", native)
	}

	back := ParamsFromNative(native)
	if len(back) != 3 || back[0].Kind != Int || back[1].Kind != Text || back[2].Kind != Null {
		t.Fatalf("unexpected round-tripped params: %+v", back)
	}
}
