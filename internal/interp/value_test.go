package interp_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"ibci/internal/interp"
)

func TestReprScalars(t *testing.T) {
	cases := []struct {
		name string
		v    interp.Value
		want string
	}{
		{"int", interp.IntValue(6), "6"},
		{"negative int", interp.IntValue(-3), "-3"},
		{"float", interp.FloatValue(3.5), "3.5"},
		{"str", interp.StrValue("hi"), "hi"},
		{"true", interp.BoolValue(true), "true"},
		{"false", interp.BoolValue(false), "false"},
		{"none", interp.None, "none"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.Equal(t, c.want, interp.Repr(c.v))
		})
	}
}

func TestTruthyDecisionStrings(t *testing.T) {
	require.True(t, interp.Truthy(interp.StrValue("1")))
	require.False(t, interp.Truthy(interp.StrValue("0")))
	require.True(t, interp.Truthy(interp.StrValue("yes")))
	require.False(t, interp.Truthy(interp.StrValue("")))
}

func TestReprList(t *testing.T) {
	l := &interp.ListValue{Elems: []interp.Value{interp.IntValue(1), interp.StrValue("a"), interp.BoolValue(true)}}
	require.Equal(t, "[1, a, true]", interp.Repr(l))
}

func TestListValueElemsPreserveOrder(t *testing.T) {
	want := []interp.Value{interp.IntValue(1), interp.IntValue(2), interp.IntValue(3)}
	l := &interp.ListValue{Elems: want}

	if diff := cmp.Diff(want, l.Elems); diff != "" {
		t.Errorf("ListValue.Elems mismatch (-want +got):\n%s", diff)
	}
}

func TestDictValuePreservesInsertionOrder(t *testing.T) {
	d := interp.NewDict()
	d.Set("b", interp.IntValue(2))
	d.Set("a", interp.IntValue(1))
	d.Set("b", interp.IntValue(20)) // re-set must not move it in key order

	want := []string{"b", "a"}
	if diff := cmp.Diff(want, d.Keys()); diff != "" {
		t.Errorf("DictValue.Keys() mismatch (-want +got):\n%s", diff)
	}

	got := make(map[string]interp.Value, len(d.Keys()))
	for _, k := range d.Keys() {
		v, ok := d.Get(k)
		require.True(t, ok)
		got[k] = v
	}
	wantValues := map[string]interp.Value{"a": interp.IntValue(1), "b": interp.IntValue(20)}
	if diff := cmp.Diff(wantValues, got); diff != "" {
		t.Errorf("dict values mismatch (-want +got):\n%s", diff)
	}
}
