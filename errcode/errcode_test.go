package errcode

import (
	"errors"
	"fmt"
	"testing"
)

func TestOf(t *testing.T) {
	cases := map[string]struct {
		err  error
		want Code
	}{
		"nil":     {nil, OK},
		"code":    {NotReady, NotReady},
		"wrapped": {New(ResourceExhausted, "alloc", "pool empty"), ResourceExhausted},
		"foreign": {errors.New("boom"), Error},
	}
	for name, tc := range cases {
		if got := Of(tc.err); got != tc.want {
			t.Errorf("%s: Of = %q, want %q", name, got, tc.want)
		}
	}
}

func TestIsMatchesCodeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("start: %w", New(NotReady, "start", "no chain"))
	if !errors.Is(err, NotReady) {
		t.Fatalf("errors.Is(%v, NotReady) = false", err)
	}
	if errors.Is(err, Busy) {
		t.Fatal("errors.Is matched the wrong code")
	}
}

func TestErrorString(t *testing.T) {
	e := New(InvalidParams, "prep_memcpy", "len is 0")
	if got, want := e.Error(), "prep_memcpy: invalid_params: len is 0"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
	cause := errors.New("clock stuck")
	w := Wrap(Error, "init", cause)
	if !errors.Is(w, cause) {
		t.Fatal("Wrap lost its cause")
	}
}
