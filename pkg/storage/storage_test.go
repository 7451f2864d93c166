package storage

import (
	"io"
	"strings"
	"testing"
	"time"

	"textenger/config"
	"textenger/pkg/jwt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocal(t *testing.T, maxSize int64) *Local {
	t.Helper()
	signer := jwt.NewJWTService(config.JWTConfig{Secret: "s", Issuer: "textenger", ExpireTime: time.Hour})
	l, err := NewLocal(config.StorageConfig{Root: t.TempDir(), BaseURL: "http://localhost:8080/", MaxUploadSize: maxSize}, signer)
	require.NoError(t, err)
	return l
}

func TestSaveOpen(t *testing.T) {
	l := newLocal(t, 1024)

	n, err := l.Save("attachments", "attachments/1-1700000000000.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	f, err := l.Open("attachments", "attachments/1-1700000000000.txt")
	require.NoError(t, err)
	defer f.Close()
	body, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))

	_, err = l.Open("attachments", "missing.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveRejects(t *testing.T) {
	l := newLocal(t, 4)

	_, err := l.Save("attachments", "big.bin", strings.NewReader("too large"))
	assert.ErrorIs(t, err, ErrTooLarge)
	_, err = l.Open("attachments", "big.bin")
	assert.ErrorIs(t, err, ErrNotFound)

	for _, tc := range []struct{ bucket, path string }{
		{"attachments", "../escape"},
		{"attachments", "a//b"},
		{"attachments", ""},
		{"../etc", "passwd"},
		{"Upper", "x"},
	} {
		_, err := l.Save(tc.bucket, tc.path, strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrInvalidPath, "%s/%s", tc.bucket, tc.path)
	}
}

func TestURLs(t *testing.T) {
	l := newLocal(t, 0)
	assert.Equal(t, "http://localhost:8080/files/avatars/room-icons/a%20b.png", l.PublicURL("avatars", "room-icons/a b.png"))

	_, err := l.SignedURL("attachments", "nope.png", time.Minute)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = l.Save("attachments", "attachments/pic.png", strings.NewReader("png"))
	require.NoError(t, err)
	signed, err := l.SignedURL("attachments", "attachments/pic.png", time.Minute)
	require.NoError(t, err)
	token, ok := strings.CutPrefix(signed, "http://localhost:8080/signed/")
	require.True(t, ok)

	f, err := l.OpenSigned(token)
	require.NoError(t, err)
	f.Close()

	_, err = l.OpenSigned(token + "x")
	assert.Error(t, err)
}
