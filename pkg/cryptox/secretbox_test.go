package cryptox_test

import (
	"testing"

	"github.com/fernwehlabs/lifelog/pkg/cryptox"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestSecretboxRoundTrip(t *testing.T) {
	box, err := cryptox.NewSecretbox([]byte("test-secretbox-key-material"))
	require.NoError(t, err)

	plaintext := []byte("JBSWY3DPEHPK3PXP")

	ciphertext, nonce, err := box.Seal(plaintext)
	require.NoError(t, err)
	require.NotEmpty(t, ciphertext)
	require.Len(t, nonce, 12)
	require.NotEqual(t, plaintext, ciphertext)

	decrypted, err := box.Open(ciphertext, nonce)
	require.NoError(t, err)
	require.Equal(t, plaintext, decrypted)
}

func TestSecretboxRoundTripProperty(t *testing.T) {
	box, err := cryptox.NewSecretbox([]byte("property-test-key"))
	require.NoError(t, err)

	rapid.Check(t, func(t *rapid.T) {
		plaintext := rapid.SliceOfN(rapid.Byte(), 0, 256).Draw(t, "plaintext")

		ciphertext, nonce, err := box.Seal(plaintext)
		if err != nil {
			t.Fatalf("seal failed: %v", err)
		}

		decrypted, err := box.Open(ciphertext, nonce)
		if err != nil {
			t.Fatalf("open failed: %v", err)
		}
		if string(decrypted) != string(plaintext) {
			t.Fatalf("round trip mismatch: got %q want %q", decrypted, plaintext)
		}
	})
}

func TestSecretboxFreshNoncePerSeal(t *testing.T) {
	box, err := cryptox.NewSecretbox([]byte("nonce-test-key"))
	require.NoError(t, err)

	plaintext := []byte("same plaintext twice")

	c1, n1, err := box.Seal(plaintext)
	require.NoError(t, err)
	c2, n2, err := box.Seal(plaintext)
	require.NoError(t, err)

	require.NotEqual(t, n1, n2, "nonces must never repeat")
	require.NotEqual(t, c1, c2, "ciphertexts should differ under fresh nonces")
}

func TestSecretboxTamperFailsClosed(t *testing.T) {
	box, err := cryptox.NewSecretbox([]byte("tamper-test-key"))
	require.NoError(t, err)

	ciphertext, nonce, err := box.Seal([]byte("attack at dawn"))
	require.NoError(t, err)

	t.Run("flipping any ciphertext byte fails", func(t *testing.T) {
		for i := range ciphertext {
			mangled := make([]byte, len(ciphertext))
			copy(mangled, ciphertext)
			mangled[i] ^= 0x01

			_, err := box.Open(mangled, nonce)
			require.ErrorIs(t, err, cryptox.ErrDecrypt, "byte %d", i)
		}
	})

	t.Run("flipping any nonce byte fails", func(t *testing.T) {
		for i := range nonce {
			mangled := make([]byte, len(nonce))
			copy(mangled, nonce)
			mangled[i] ^= 0x01

			_, err := box.Open(ciphertext, mangled)
			require.ErrorIs(t, err, cryptox.ErrDecrypt, "byte %d", i)
		}
	})

	t.Run("truncated ciphertext fails", func(t *testing.T) {
		_, err := box.Open(ciphertext[:4], nonce)
		require.ErrorIs(t, err, cryptox.ErrDecrypt)
	})

	t.Run("wrong nonce size fails", func(t *testing.T) {
		_, err := box.Open(ciphertext, nonce[:8])
		require.ErrorIs(t, err, cryptox.ErrDecrypt)
	})
}

func TestSecretboxDifferentKeysDoNotInterop(t *testing.T) {
	box1, err := cryptox.NewSecretbox([]byte("key-one"))
	require.NoError(t, err)
	box2, err := cryptox.NewSecretbox([]byte("key-two"))
	require.NoError(t, err)

	ciphertext, nonce, err := box1.Seal([]byte("secret"))
	require.NoError(t, err)

	_, err = box2.Open(ciphertext, nonce)
	require.ErrorIs(t, err, cryptox.ErrDecrypt)
}

func TestNewSecretboxRejectsEmptyKey(t *testing.T) {
	_, err := cryptox.NewSecretbox(nil)
	require.Error(t, err)
}
