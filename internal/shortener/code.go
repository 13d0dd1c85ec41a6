package shortener

import (
	"fmt"

	"github.com/jaevor/go-nanoid"
)

// DefaultCodeLength matches the length of codes issued by the service historically.
const DefaultCodeLength = 6

// NewCodeGenerator returns a generator of random codes drawn from the URL-safe nanoid alphabet.
func NewCodeGenerator(length int) (CodeGenerator, error) {
	if length <= 0 {
		length = DefaultCodeLength
	}

	gen, err := nanoid.Standard(length)
	if err != nil {
		return nil, fmt.Errorf("create code generator: %w", err)
	}

	return CodeGenerator(gen), nil
}
