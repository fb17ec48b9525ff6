package core

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestValueKinds(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		kind Kind
	}{
		{"unset", Unset, KindUnset},
		{"bool", Bool(true), KindBool},
		{"int", Int(-7), KindInt},
		{"float", Float(2.5), KindFloat},
		{"string", String("hi"), KindString},
		{"opaque", Opaque("blob/v1", []byte{1, 2}), KindOpaque},
	}
	for _, tc := range cases {
		if got := tc.v.Kind(); got != tc.kind {
			t.Errorf("%s: kind = %v, want %v", tc.name, got, tc.kind)
		}
	}
}

func TestValueAccessorsMismatch(t *testing.T) {
	v := Int(42)
	if _, ok := v.AsString(); ok {
		t.Error("AsString on int should report !ok")
	}
	if _, ok := v.AsBool(); ok {
		t.Error("AsBool on int should report !ok")
	}
	if got, ok := v.AsInt(); !ok || got != 42 {
		t.Errorf("AsInt = %d, %v", got, ok)
	}
}

func TestOpaqueCopiesBytes(t *testing.T) {
	src := []byte{1, 2, 3}
	v := Opaque("tag", src)
	src[0] = 99

	_, got, ok := v.AsOpaque()
	if !ok {
		t.Fatal("AsOpaque failed")
	}
	if got[0] != 1 {
		t.Error("constructor aliased caller bytes")
	}

	got[1] = 99
	_, again, _ := v.AsOpaque()
	if again[1] != 2 {
		t.Error("accessor aliased internal bytes")
	}
}

func TestValueEqual(t *testing.T) {
	if !Opaque("t", []byte{1}).Equal(Opaque("t", []byte{1})) {
		t.Error("equal opaques not equal")
	}
	if Opaque("t", []byte{1}).Equal(Opaque("u", []byte{1})) {
		t.Error("different tags compared equal")
	}
	if Int(1).Equal(Float(1)) {
		t.Error("cross-kind compared equal")
	}
	if !Unset.Equal(Value{}) {
		t.Error("unset values should be equal")
	}
}

func TestValueJSON(t *testing.T) {
	data, err := json.Marshal(String("x"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte(`"kind":"string"`)) {
		t.Errorf("missing kind tag: %s", data)
	}
}

func TestParseLevel(t *testing.T) {
	if l, err := ParseLevel("warn"); err != nil || l != LevelWarn {
		t.Errorf("warn: %v, %v", l, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestParseDuration(t *testing.T) {
	d, err := ParseDuration("2ms")
	if err != nil || d != 2*Millisecond {
		t.Errorf("2ms: %v, %v", d, err)
	}
	if _, err := ParseDuration("nope"); err == nil {
		t.Error("expected error")
	}
}
