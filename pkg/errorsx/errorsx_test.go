package errorsx

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapAttachesReason(t *testing.T) {
	base := errors.New("boom")
	err := Wrap(base, ReasonLLMFailure)
	if Reason(err) != ReasonLLMFailure {
		t.Fatalf("expected llm_failure, got %s", Reason(err))
	}
	if !errors.Is(err, base) {
		t.Fatalf("wrapped error must unwrap to base")
	}
}

func TestWrapDoesNotRewrap(t *testing.T) {
	err := Wrap(errors.New("boom"), ReasonSTTFailure)
	again := Wrap(err, ReasonTTSFailure)
	if Reason(again) != ReasonSTTFailure {
		t.Fatalf("first reason must win, got %s", Reason(again))
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, ReasonSTTFailure) != nil {
		t.Fatalf("wrapping nil must return nil")
	}
}

func TestSentinelReasons(t *testing.T) {
	cases := []struct {
		err  error
		want ReasonCode
	}{
		{ErrSessionNotFound, ReasonSessionNotFound},
		{ErrCapacityExceeded, ReasonCapacityExceeded},
		{ErrMalformedControl, ReasonMalformedControl},
		{fmt.Errorf("lookup: %w", ErrSessionNotFound), ReasonSessionNotFound},
	}
	for _, c := range cases {
		if got := Reason(c.err); got != c.want {
			t.Fatalf("reason for %v: got %s want %s", c.err, got, c.want)
		}
	}
	if Reason(errors.New("other")) != ReasonUnknown {
		t.Fatalf("unrelated errors must map to unknown")
	}
}
