package core_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/becomeliminal/mnemo/core"
)

func TestErrorKinds(t *testing.T) {
	validation := core.Validationf("bad input %d", 42)
	if !core.IsValidation(validation) {
		t.Error("Validationf should produce a validation error")
	}
	if core.IsTransient(validation) {
		t.Error("Validation error reported as transient")
	}

	cause := errors.New("connection refused")
	transient := core.Transient("embedding service", cause)
	if !core.IsTransient(transient) {
		t.Error("Transient should produce a transient error")
	}
	if !errors.Is(transient, cause) {
		t.Error("Transient must wrap its cause")
	}

	isolation := core.Isolationf("partition %q collided", "x")
	if core.KindOf(isolation) != core.KindIsolation {
		t.Errorf("KindOf = %v", core.KindOf(isolation))
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	inner := core.Transient("upstream down", nil)
	wrapped := fmt.Errorf("embed query: %w", inner)

	if !core.IsTransient(wrapped) {
		t.Error("Kind lost through %w wrapping")
	}
}

func TestKindOfUntypedError(t *testing.T) {
	if core.KindOf(errors.New("plain")) != "" {
		t.Error("Untyped errors have no kind")
	}
	if core.KindOf(nil) != "" {
		t.Error("nil has no kind")
	}
}
