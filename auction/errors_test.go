package auction

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		err  error
		kind Kind
	}{
		{NotFoundf("lot %d", 7), KindNotFound},
		{Validationf("too low"), KindValidation},
		{Forbiddenf("not your turn"), KindForbidden},
		{Conflictf("lost the race"), KindConflict},
		{Internalf(errors.New("boom"), "query"), KindInternal},
		{ErrSimultaneousBid, KindConflict},
		{errors.New("plain"), KindInternal},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.kind {
			t.Errorf("KindOf(%v) = %s, want %s", tt.err, got, tt.kind)
		}
		if !IsKind(tt.err, tt.kind) {
			t.Errorf("IsKind(%v, %s) = false", tt.err, tt.kind)
		}
	}
	if IsKind(nil, KindInternal) {
		t.Error("IsKind(nil) should be false")
	}
}

func TestErrorKindSurvivesWrapping(t *testing.T) {
	wrapped := fmt.Errorf("calling engine: %w", Validationf("too low"))
	if !IsKind(wrapped, KindValidation) {
		t.Errorf("wrapped kind = %s, want validation", KindOf(wrapped))
	}
}

func TestInternalfUnwrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Internalf(cause, "load draft")
	if !errors.Is(err, cause) {
		t.Error("Internalf should wrap its cause")
	}
}
