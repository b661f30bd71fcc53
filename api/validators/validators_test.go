package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/simpify/spark-backend/pkg/errors"
)

type registerBody struct {
	Email string `json:"email" validate:"required,email"`
}

func TestDecodeJSONBody(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
		field   string
	}{
		{name: "valid", body: `{"email":"a@b.com"}`},
		{name: "empty", body: ``, wantErr: true},
		{name: "unknown field", body: `{"email":"a@b.com","password":"x"}`, wantErr: true},
		{name: "missing email", body: `{}`, wantErr: true, field: "email"},
		{name: "bad email", body: `{"email":"nope"}`, wantErr: true, field: "email"},
		{name: "trailing object", body: `{"email":"a@b.com"}{"email":"c@d.com"}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dest registerBody
			err := DecodeJSONBody(req, &dest)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
			if tt.field != "" {
				details, ok := typed.Details().(map[string]string)
				if !ok || details[tt.field] == "" {
					t.Fatalf("expected detail for %s, got %#v", tt.field, typed.Details())
				}
			}
		})
	}
}

func TestOptionalNonNegativeInt(t *testing.T) {
	parse := func(query string) (*int, error) {
		return OptionalNonNegativeInt(httptest.NewRequest(http.MethodGet, "/?"+query, nil), "age", 150)
	}

	if v, err := parse(""); err != nil || v != nil {
		t.Fatalf("expected nil for missing, got %v %v", v, err)
	}
	if v, err := parse("age=29"); err != nil || v == nil || *v != 29 {
		t.Fatalf("expected 29, got %v %v", v, err)
	}
	for _, bad := range []string{"age=-1", "age=abc", "age=200", "age=2.5"} {
		if _, err := parse(bad); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("%s: expected validation error, got %v", bad, err)
		}
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  hello  ", 0); got != "hello" {
		t.Fatalf("unexpected %q", got)
	}
	if got := SanitizeString("abcdef", 3); got != "abc" {
		t.Fatalf("unexpected %q", got)
	}
	if got := SanitizeString("héllo", 2); got != "h" {
		t.Fatalf("expected rune-safe cut, got %q", got)
	}
}
