package encryption

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *EncryptionService {
	t.Helper()
	key, err := GenerateKey()
	require.NoError(t, err)
	svc, err := NewEncryptionService(key)
	require.NoError(t, err)
	return svc
}

func TestGenerateKey(t *testing.T) {
	key1, err := GenerateKey()
	require.NoError(t, err)
	key2, err := GenerateKey()
	require.NoError(t, err)

	assert.NotEqual(t, key1, key2)
}

func TestNewEncryptionService(t *testing.T) {
	valid, err := GenerateKey()
	require.NoError(t, err)

	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid key", valid, false},
		{"empty key", "", true},
		{"invalid key", "invalid-key", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, err := NewEncryptionService(tt.key)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, service)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, service)
			}
		})
	}
}

func TestEncryptDecrypt(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.Encrypt("Xq3v-secret_key")
	require.NoError(t, err)
	assert.NotEqual(t, "Xq3v-secret_key", token)

	plaintext, err := svc.Decrypt(token)
	require.NoError(t, err)
	assert.Equal(t, "Xq3v-secret_key", plaintext)
}

func TestEncryptDecrypt_Empty(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, token)

	plaintext, err := svc.Decrypt("")
	require.NoError(t, err)
	assert.Empty(t, plaintext)
}

func TestDecrypt_WrongKey(t *testing.T) {
	token, err := newTestService(t).Encrypt("secret")
	require.NoError(t, err)

	_, err = newTestService(t).Decrypt(token)
	assert.ErrorContains(t, err, "invalid or expired")
}

func TestDecrypt_InvalidFormat(t *testing.T) {
	_, err := newTestService(t).Decrypt("not base64!!")
	assert.ErrorContains(t, err, "invalid token format")
}
