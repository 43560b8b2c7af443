package repo

import (
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	tempPath := t.TempDir()

	keyPath := path.Join(tempPath, "owner.key")
	k, err := GenerateKey()
	assert.Nil(t, err)

	err = WriteKey(keyPath, k)
	assert.Nil(t, err)

	readKey, err := ReadKey(keyPath)
	assert.Nil(t, err)
	assert.True(t, k.Equal(readKey))
}

func TestParseKey(t *testing.T) {
	k, err := GenerateKey()
	assert.Nil(t, err)

	parsed, err := ParseKey([]byte(KeyString(k)))
	assert.Nil(t, err)
	assert.True(t, k.Equal(parsed))

	_, err = ParseKey([]byte("not-a-key"))
	assert.NotNil(t, err)
}
