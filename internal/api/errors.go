package api

import (
	"errors"

	"github.com/samcharles93/explora/internal/inference"
	"github.com/samcharles93/explora/internal/logits"
	"github.com/samcharles93/explora/internal/model"
	"github.com/samcharles93/explora/internal/session"
	"github.com/samcharles93/explora/internal/tensor"
	"github.com/samcharles93/explora/internal/usage"
)

var ErrInvalidRequest = errors.New("invalid_request")

type invalidRequestError struct {
	msg string
}

func (e invalidRequestError) Error() string {
	return e.msg
}

func (e invalidRequestError) Unwrap() error {
	return ErrInvalidRequest
}

func newInvalidRequest(msg string) error {
	return invalidRequestError{msg: msg}
}

// isClientError reports whether err was caused by the request rather than the
// server.
func isClientError(err error) bool {
	for _, target := range []error{
		ErrInvalidRequest,
		inference.ErrEmptyInput,
		inference.ErrTooManyTokens,
		inference.ErrStageOrder,
		session.ErrInvalidTransition,
		model.ErrHeadSplit,
		logits.ErrEmptyVocabulary,
		tensor.ErrLengthMismatch,
		usage.ErrMissingDemo,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
