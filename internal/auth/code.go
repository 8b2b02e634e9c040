package auth

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const digits = "0123456789"

// CodeGenerator produces one-time numeric codes. Services take it as a
// dependency so tests can pin the code.
type CodeGenerator interface {
	Generate(length int) (string, error)
}

type NumericCodes struct{}

func (NumericCodes) Generate(length int) (string, error) {
	code, err := gonanoid.Generate(digits, length)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return code, nil
}

// FixedCode always returns the same code, truncated or as is.
type FixedCode string

func (c FixedCode) Generate(length int) (string, error) {
	if len(c) >= length {
		return string(c)[:length], nil
	}
	return string(c), nil
}
