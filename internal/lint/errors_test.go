package lint

import (
	"errors"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	e := New(KindIO, "/tmp/x", errors.New("boom"))
	want := "io: /tmp/x: boom"
	if e.Error() != want {
		t.Errorf("Error() = %q, want %q", e.Error(), want)
	}
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	e := New(KindCache, "", inner)
	if !errors.Is(e, inner) {
		t.Errorf("expected errors.Is to find the wrapped error")
	}
}

func TestOnlyConfigIsFatal(t *testing.T) {
	for _, k := range []Kind{KindPath, KindIO, KindCache, KindCancelled} {
		if k.Fatal() {
			t.Errorf("Kind %v should not be fatal", k)
		}
	}
	if !KindConfig.Fatal() {
		t.Errorf("KindConfig should be fatal")
	}
}

func TestPhaseString(t *testing.T) {
	phases := []Phase{PhaseInit, PhaseTraverse, PhasePreprocess, PhaseShred, PhaseMerge, PhasePreShutdown, PhaseSummary}
	seen := map[string]bool{}
	for _, p := range phases {
		s := p.String()
		if s == "UNKNOWN" {
			t.Errorf("phase %d stringified as UNKNOWN", p)
		}
		if seen[s] {
			t.Errorf("duplicate phase string %q", s)
		}
		seen[s] = true
	}
}
