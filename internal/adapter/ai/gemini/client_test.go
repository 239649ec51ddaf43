package gemini

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fairyhunter13/resume-match-engine/internal/domain"
)

func TestNewRequiresAPIKey(t *testing.T) {
	t.Parallel()
	_, err := New(context.Background(), "", "gemini-2.5-flash")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}
