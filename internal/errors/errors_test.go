package errors

import (
	stderrors "errors"
	"testing"
)

func TestNewRegisteredCode(t *testing.T) {
	err := New("E201")
	if err.Category != CategoryRevalidate {
		t.Errorf("expected revalidate category, got %s", err.Category)
	}
	if err.Error() != "E201: Render function failed" {
		t.Errorf("unexpected error string: %s", err.Error())
	}
}

func TestNewUnknownCode(t *testing.T) {
	err := New("E999")
	if err.Message != "Unknown error" {
		t.Errorf("expected unknown error message, got %s", err.Message)
	}
	if err.Code != "E999" {
		t.Errorf("code should be preserved, got %s", err.Code)
	}
}

func TestNewf(t *testing.T) {
	err := Newf(CategoryCache, "path %q not cached", "/blog")
	if err.Message != `path "/blog" not cached` {
		t.Errorf("unexpected message: %s", err.Message)
	}
	if err.Code != "" {
		t.Errorf("Newf should not set a code")
	}
}

func TestWrapUnwrap(t *testing.T) {
	inner := stderrors.New("disk full")
	err := New("E102").Wrap(inner)

	if !stderrors.Is(err, inner) {
		t.Error("errors.Is should find the wrapped error")
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, "E101") != nil {
		t.Error("FromError(nil) should be nil")
	}

	orig := New("E103")
	if FromError(orig, "E101") != orig {
		t.Error("FromError should pass through *Error unchanged")
	}

	wrapped := FromError(stderrors.New("boom"), "E101")
	if wrapped.Code != "E101" {
		t.Errorf("expected code E101, got %s", wrapped.Code)
	}
}

func TestBuilderMethods(t *testing.T) {
	err := New("E301").
		WithDetail("trailing comma on line 4").
		WithSuggestion("remove the trailing comma")

	if err.Detail != "trailing comma on line 4" {
		t.Errorf("unexpected detail: %s", err.Detail)
	}
	if err.Suggestion != "remove the trailing comma" {
		t.Errorf("unexpected suggestion: %s", err.Suggestion)
	}
}
