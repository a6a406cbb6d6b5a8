package store

import (
	"reflect"
	"strings"
	"testing"

	"github.com/roach88/tangram/internal/ir"
)

func TestMarshalPatch_Canonical(t *testing.T) {
	p := createTestPatch("canon")

	first, err := marshalPatch(p)
	if err != nil {
		t.Fatalf("marshalPatch() failed: %v", err)
	}
	second, err := marshalPatch(p)
	if err != nil {
		t.Fatalf("marshalPatch() failed: %v", err)
	}
	if first != second {
		t.Error("marshalPatch() is not deterministic")
	}
	if !strings.HasPrefix(first, `{"chains":[`) {
		t.Errorf("keys not sorted: %s", first)
	}
}

func TestUnmarshalPatch_LiteralsAreInt64(t *testing.T) {
	p := createTestPatch("ints")
	data, err := marshalPatch(p)
	if err != nil {
		t.Fatalf("marshalPatch() failed: %v", err)
	}

	got, err := unmarshalPatch(data)
	if err != nil {
		t.Fatalf("unmarshalPatch() failed: %v", err)
	}

	args := got.Chains[0].Args
	if _, ok := args[0].Literal.(int64); !ok {
		t.Errorf("args[0].Literal is %T, want int64", args[0].Literal)
	}
	want := []any{int64(62), nil, int64(64)}
	if !reflect.DeepEqual(args[1].Literal, want) {
		t.Errorf("args[1].Literal = %#v, want %#v", args[1].Literal, want)
	}
	if got.Pulses[0].FirstIf == nil || got.Pulses[0].FirstIf.Literal != int64(0) {
		t.Errorf("first_if = %#v, want literal 0", got.Pulses[0].FirstIf)
	}
	if got.Pulses[0].Chain == nil || got.Pulses[0].Chain.Ref != "notes" {
		t.Errorf("chain = %#v, want ref notes", got.Pulses[0].Chain)
	}
}

func TestUnmarshalPatch_RejectsFloatLiteral(t *testing.T) {
	data := `{"chains":[{"args":[{"literal":1.5}],"kind":"const","name":"a"}],"name":"x","pulses":[],"root":"emit","seed":0}`

	_, err := unmarshalPatch(data)
	if err == nil {
		t.Fatal("expected error for float literal")
	}
	if !strings.Contains(err.Error(), "not an integer") {
		t.Errorf("error = %v, want mention of integer", err)
	}
}

func TestUnmarshalPatch_InvalidJSON(t *testing.T) {
	if _, err := unmarshalPatch("{"); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestNormalizeLiteral_PassesThrough(t *testing.T) {
	for _, v := range []any{nil, "1.2", ir.Rest} {
		got, err := normalizeLiteral(v)
		if err != nil {
			t.Fatalf("normalizeLiteral(%#v) failed: %v", v, err)
		}
		if !reflect.DeepEqual(got, v) {
			t.Errorf("normalizeLiteral(%#v) = %#v", v, got)
		}
	}
}
