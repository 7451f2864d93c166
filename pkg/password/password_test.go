package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	assert.NoError(t, Verify("correct horse", hash))
	assert.ErrorIs(t, Verify("battery staple", hash), ErrMismatch)
	assert.Error(t, Verify("correct horse", "not-a-hash"))
}

func TestValidate(t *testing.T) {
	assert.ErrorIs(t, Validate("abc"), ErrTooShort)
	assert.ErrorIs(t, Validate(strings.Repeat("x", MaxBytes+1)), ErrTooLong)
	assert.NoError(t, Validate("密码六个字符"))

	_, err := Hash("short")
	assert.ErrorIs(t, err, ErrTooShort)
}
