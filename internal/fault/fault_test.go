package fault

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestWrapPreservesClassAndCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("gorm: connection refused")
	err := Wrap(ErrStorage, "storage.save_activity", cause)
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("expected storage class, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected original cause to survive wrapping")
	}
}

func TestInternalPassesClassifiedErrorsThrough(t *testing.T) {
	t.Parallel()

	already := Wrap(ErrTokenExpired, "tokens.verify", nil)
	err := Internal("accounts.refresh", already)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected expired class to pass through, got %v", err)
	}
	if errors.Is(err, ErrInternal) {
		t.Fatalf("classified error must not be reclassified as internal")
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err    error
		status int
	}{
		{ErrValidation, http.StatusBadRequest},
		{ErrNotFound, http.StatusNotFound},
		{ErrTokenInvalid, http.StatusUnauthorized},
		{ErrTokenExpired, http.StatusUnauthorized},
		{ErrNotModified, http.StatusNotModified},
		{ErrUpstream, http.StatusBadGateway},
		{ErrStorage, http.StatusInternalServerError},
		{ErrInternal, http.StatusInternalServerError},
		{errors.New("raw"), http.StatusInternalServerError},
	}
	for _, testCase := range cases {
		wrapped := fmt.Errorf("component.op: %w", testCase.err)
		if got := HTTPStatus(wrapped); got != testCase.status {
			t.Fatalf("status for %v: expected %d, got %d", testCase.err, testCase.status, got)
		}
	}
}

func TestPublicMessageNeverLeaksCause(t *testing.T) {
	t.Parallel()

	err := Internal("syncpipe.run", errors.New("password=hunter2 dial tcp refused"))
	if message := PublicMessage(err); message != "internal server error" {
		t.Fatalf("expected generic message, got %q", message)
	}
}
