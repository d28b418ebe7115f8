package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  *Error
		want int
	}{
		{Validation("bad date"), http.StatusBadRequest},
		{NotFound("service not found"), http.StatusNotFound},
		{SlotConflict(), http.StatusConflict},
		{Forbidden("not yours"), http.StatusForbidden},
		{Upstream("db", errors.New("boom")), http.StatusInternalServerError},
		{PaymentGateway(errors.New("stripe down")), http.StatusBadGateway},
	}
	for _, tc := range cases {
		if got := tc.err.HTTPStatus(); got != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.err.Code, tc.want, got)
		}
	}
}

func TestFromWrapsUnknown(t *testing.T) {
	cause := errors.New("connection reset")
	e := From(fmt.Errorf("list schedules: %w", cause))
	if e.Kind != KindUpstream || !errors.Is(e, cause) {
		t.Fatalf("expected upstream wrapping cause, got %+v", e)
	}

	wrapped := fmt.Errorf("commit: %w", SlotConflict())
	if !IsSlotConflict(wrapped) {
		t.Fatal("expected wrapped slot conflict to be detected")
	}
	if IsSlotConflict(Conflict("state", "already canceled")) {
		t.Fatal("state conflict is not a slot conflict")
	}
}
