package errors

import (
	stdErrors "errors"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, publicMsg: "sign in to continue"},
		{code: CodeNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, publicMsg: "the item changed while saving, please retry", retryable: true},
		{code: CodeSizeRequired, publicMsg: "please select a size before adding to cart", detailsOK: true},
		{code: CodeInvalidPromo, publicMsg: "invalid promo code", detailsOK: true},
		{code: CodeEmptyCart, publicMsg: "your cart is empty"},
		{code: CodeRemoteRead, publicMsg: "could not load your saved items, please retry", retryable: true},
		{code: CodeRemoteWrite, publicMsg: "could not save your changes, please retry", retryable: true},
		{code: CodeInternal, publicMsg: "something went wrong", retryable: true},
		{code: CodeDependency, publicMsg: "service unavailable", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.PublicMessage != "something went wrong" {
		t.Fatalf("expected internal fallback, got %q", meta.PublicMessage)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeSizeRequired, "missing size for P1")
	if base.Code() != CodeSizeRequired {
		t.Fatalf("expected size required code, got %s", base.Code())
	}
	if base.Message() != "missing size for P1" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"product_id": "P1"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeRemoteWrite, cause, "write cart")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeRemoteWrite {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
	if wrapped.PublicMessage() != "could not save your changes, please retry" {
		t.Fatalf("unexpected public message %q", wrapped.PublicMessage())
	}
}

func TestAsAndIsCode(t *testing.T) {
	err := New(CodeInvalidPromo, "no such code")
	if got := As(err); got == nil || got.Code() != CodeInvalidPromo {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
	if !IsCode(err, CodeInvalidPromo) {
		t.Fatalf("IsCode should match the carried code")
	}
	if IsCode(err, CodeEmptyCart) {
		t.Fatalf("IsCode matched the wrong code")
	}
	if IsCode(stdErrors.New("plain"), CodeInternal) {
		t.Fatalf("IsCode should be false for untyped errors")
	}

	wrapped := fmtWrap(err)
	if !IsCode(wrapped, CodeInvalidPromo) {
		t.Fatalf("IsCode should see through wrapping")
	}
}

func fmtWrap(err error) error {
	return Wrap(CodeInvalidPromo, err, "outer")
}
