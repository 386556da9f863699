package errors

import (
	stdErrors "errors"
	"fmt"
)

type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeSizeRequired Code = "SIZE_REQUIRED"
	CodeInvalidPromo Code = "INVALID_PROMO_CODE"
	CodeEmptyCart    Code = "EMPTY_CART"
	CodeRemoteRead   Code = "REMOTE_READ_ERROR"
	CodeRemoteWrite  Code = "REMOTE_WRITE_ERROR"
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeDependency   Code = "DEPENDENCY_ERROR"
)

// Metadata describes how callers may surface a given error code.
type Metadata struct {
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation: {
		Retryable:      false,
		PublicMessage:  "validation failed",
		DetailsAllowed: true,
	},
	CodeUnauthorized: {
		Retryable:      false,
		PublicMessage:  "sign in to continue",
		DetailsAllowed: false,
	},
	CodeNotFound: {
		Retryable:      false,
		PublicMessage:  "resource not found",
		DetailsAllowed: false,
	},
	CodeConflict: {
		Retryable:      true,
		PublicMessage:  "the item changed while saving, please retry",
		DetailsAllowed: false,
	},
	CodeSizeRequired: {
		Retryable:      false,
		PublicMessage:  "please select a size before adding to cart",
		DetailsAllowed: true,
	},
	CodeInvalidPromo: {
		Retryable:      false,
		PublicMessage:  "invalid promo code",
		DetailsAllowed: true,
	},
	CodeEmptyCart: {
		Retryable:      false,
		PublicMessage:  "your cart is empty",
		DetailsAllowed: false,
	},
	CodeRemoteRead: {
		Retryable:      true,
		PublicMessage:  "could not load your saved items, please retry",
		DetailsAllowed: false,
	},
	CodeRemoteWrite: {
		Retryable:      true,
		PublicMessage:  "could not save your changes, please retry",
		DetailsAllowed: false,
	},
	CodeInternal: {
		Retryable:      true,
		PublicMessage:  "something went wrong",
		DetailsAllowed: false,
	},
	CodeDependency: {
		Retryable:      true,
		PublicMessage:  "service unavailable",
		DetailsAllowed: true,
	},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// PublicMessage resolves the human-readable message for the error's code.
func (e *Error) PublicMessage() string {
	return MetadataFor(e.Code()).PublicMessage
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether the error carries the given code anywhere in its chain.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}
