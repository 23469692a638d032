package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("invalid input")
	ErrRetrieval  = errors.New("retrieval failure")
	ErrRerank     = errors.New("rerank failure")
	ErrGeneration = errors.New("generation failure")
	ErrNotFound   = errors.New("not found")
	ErrTemporary  = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
