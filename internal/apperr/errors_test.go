package apperr

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code   Code
		status int
		expose bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, expose: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, expose: true},
		{code: CodeForbidden, status: http.StatusForbidden, expose: true},
		{code: CodeNotFound, status: http.StatusNotFound, expose: true},
		{code: CodeConflict, status: http.StatusConflict, expose: true},
		{code: CodeOTPExpired, status: http.StatusBadRequest, expose: true},
		{code: CodeOTPInvalid, status: http.StatusBadRequest, expose: true},
		{code: CodeOTPNotRequested, status: http.StatusBadRequest, expose: true},
		{code: CodeInternal, status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.ExposeMessage != tt.expose {
			t.Fatalf("code %s expected expose %v", tt.code, tt.expose)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	if MetadataFor("NOPE").HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	outer := fmt.Errorf("outer: %w", wrapped)
	if !Is(outer, CodeConflict) {
		t.Fatalf("expected conflict code through wrapping")
	}
	if As(stdErrors.New("plain")) != nil {
		t.Fatalf("plain error must not be typed")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	if !IsUniqueViolation(err) {
		t.Fatalf("expected unique violation")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Fatalf("foreign key violation is not unique violation")
	}
}
