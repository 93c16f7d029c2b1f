package notify

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewTelegramValidation(t *testing.T) {
	_, err := NewTelegram("", 42, zerolog.Nop())
	assert.ErrorContains(t, err, "token")

	_, err = NewTelegram("123:abc", 0, zerolog.Nop())
	assert.ErrorContains(t, err, "chat ID")
}
