package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserUsable(t *testing.T) {
	t.Parallel()

	assert.True(t, User{Username: "alice", Email: "alice@example.com"}.Usable())
	assert.False(t, User{Username: "alice"}.Usable(), "missing email")
	assert.False(t, User{Email: "alice@example.com"}.Usable(), "missing username")
	assert.False(t, User{}.Usable())
}
