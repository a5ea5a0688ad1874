package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesByCode(t *testing.T) {
	custom := ErrNotFound.WithMessage("hiring request abc not found")
	assert.True(t, errors.Is(custom, ErrNotFound))
	assert.False(t, errors.Is(custom, ErrConflict))
	assert.Equal(t, "hiring request abc not found", custom.Error())
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"validation", ErrInvalidBudget, KindValidation},
		{"wrapped state", fmt.Errorf("submit: %w", ErrRequestNotActive), KindState},
		{"auth", ErrForbidden, KindAuth},
		{"transport", ErrSlowConsumer, KindTransport},
		{"plain error", errors.New("boom"), KindInternal},
		{"nil", nil, KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "not_found", KindNotFound.String())
	assert.Equal(t, "internal", Kind(200).String())
}
