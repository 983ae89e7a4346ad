package storage

import (
	"fmt"
	"pitchmatch/backend/internal/apperr"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// messageContent mirrors models.MaxContentLength; validator counts runes for max on strings.
type messageContent struct {
	Text string `validate:"required,max=5000"`
}

// NormalizeContent trims content and checks it is non-empty and at most
// models.MaxContentLength code points long.
func NormalizeContent(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if err := validate.Struct(messageContent{Text: text}); err != nil {
		return "", fmt.Errorf("%w: content must be 1-5000 characters", apperr.ErrValidation)
	}
	return text, nil
}
