package jwtx_test

import (
	"testing"
	"time"

	"github.com/fernwehlabs/lifelog/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const exampleIssuer = "https://auth.example.com"

func TestEdDSASignAndVerify(t *testing.T) {
	pemKey, err := jwtx.GenerateEdDSAKeyPEM()
	require.NoError(t, err)

	kid := "test-key-eddsa"

	signer, err := jwtx.NewSignerEdDSA(kid, pemKey)
	require.NoError(t, err)
	require.NotNil(t, signer)
	require.NoError(t, signer.Validate())
	require.Equal(t, "EdDSA", signer.Alg())
	require.Equal(t, kid, signer.KID())

	now := time.Now().UTC()
	claims := jwtx.NewAccessClaims(
		"user-456",             // subject
		"session-eddsa1",       // session ID
		[]string{"pwd", "mfa"}, // AMR
		5*time.Minute,          // TTL
		exampleIssuer,          // issuer
		[]string{"api"},        // audience
		"eddsa@example.com",    // email
		"EdDSA User",           // display name
		now,                    // issued at time
	)

	token, err := signer.Sign(claims)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	keyset := jwtx.NewKeySet()
	require.NoError(t, keyset.AddSigner(signer))
	require.True(t, keyset.IsReady())

	verifier := jwtx.NewVerifierEdDSA(keyset, exampleIssuer, []string{"api"})

	parsedClaims, err := verifier.Verify(token)
	require.NoError(t, err)
	require.NotNil(t, parsedClaims)

	require.Equal(t, claims.Issuer, parsedClaims.Issuer)
	require.Equal(t, claims.Subject, parsedClaims.Subject)
	require.ElementsMatch(t, claims.Audience, parsedClaims.Audience)
	require.ElementsMatch(t, claims.AMR, parsedClaims.AMR)
	require.Equal(t, claims.SID, parsedClaims.SID)
	require.Equal(t, claims.Email, parsedClaims.Email)
	require.Equal(t, claims.Name, parsedClaims.Name)
	require.NotEmpty(t, parsedClaims.ID) // JTI should be set
}

func TestEdDSAVerifyFailsForWrongIssuer(t *testing.T) {
	pemKey, err := jwtx.GenerateEdDSAKeyPEM()
	require.NoError(t, err)

	signer, err := jwtx.NewSignerEdDSA("k1", pemKey)
	require.NoError(t, err)

	now := time.Now().UTC()
	claims := jwtx.NewAccessClaims(
		"user-789",
		"session-wrong",
		nil,
		1*time.Minute,
		exampleIssuer,
		nil,
		"",
		"",
		now,
	)

	token, err := signer.Sign(claims)
	require.NoError(t, err)

	keyset := jwtx.NewKeySet()
	require.NoError(t, keyset.AddSigner(signer))

	// Verifier expects a different issuer
	verifier := jwtx.NewVerifierEdDSA(keyset, "wrong-issuer", []string{"api"})

	_, err = verifier.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrIssuer)
}

func TestEdDSAVerifyFailsForUnknownKey(t *testing.T) {
	pemKey1, _ := jwtx.GenerateEdDSAKeyPEM()
	signer1, _ := jwtx.NewSignerEdDSA("key1", pemKey1)

	pemKey2, _ := jwtx.GenerateEdDSAKeyPEM()
	signer2, _ := jwtx.NewSignerEdDSA("key2", pemKey2)

	// Token signed with key1
	now := time.Now().UTC()
	claims := jwtx.NewAccessClaims(
		"user-unknown", "session-key", nil,
		1*time.Minute, exampleIssuer, nil, "", "", now,
	)
	token, _ := signer1.Sign(claims)

	// Keyset only contains key2
	keyset := jwtx.NewKeySet()
	require.NoError(t, keyset.AddSigner(signer2))

	verifier := jwtx.NewVerifierEdDSA(keyset, exampleIssuer, nil)

	_, err := verifier.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrNoKey)
}

func TestEdDSAVerifyFailsForExpiredToken(t *testing.T) {
	pemKey, err := jwtx.GenerateEdDSAKeyPEM()
	require.NoError(t, err)

	signer, err := jwtx.NewSignerEdDSA("k1", pemKey)
	require.NoError(t, err)

	// Claims issued far enough in the past that they are already expired
	past := time.Now().UTC().Add(-10 * time.Minute)
	claims := jwtx.NewAccessClaims(
		"user-expired", "session-expired", nil,
		1*time.Minute, exampleIssuer, nil, "", "", past,
	)

	token, err := signer.Sign(claims)
	require.NoError(t, err)

	keyset := jwtx.NewKeySet()
	require.NoError(t, keyset.AddSigner(signer))

	verifier := jwtx.NewVerifierEdDSA(keyset, exampleIssuer, nil)

	_, err = verifier.Verify(token)
	require.Error(t, err)
}

func TestEdDSAValidateFailsForInvalidKey(t *testing.T) {
	_, err := jwtx.NewSignerEdDSA("test", []byte("not-a-pem-key"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid PEM")
}

func TestEdDSACommonVerifierAdapter(t *testing.T) {
	pemKey, err := jwtx.GenerateEdDSAKeyPEM()
	require.NoError(t, err)

	signer, err := jwtx.NewSignerEdDSA("test-key", pemKey)
	require.NoError(t, err)

	now := time.Now().UTC()
	claims := jwtx.NewAccessClaims(
		"user-123",
		"session-adapter",
		[]string{"pwd"},
		1*time.Minute,
		exampleIssuer,
		nil,
		"adapter@example.com",
		"Adapter User",
		now,
	)

	token, err := signer.Sign(claims)
	require.NoError(t, err)

	keyset := jwtx.NewKeySet()
	require.NoError(t, keyset.AddSigner(signer))

	verifier := jwtx.NewCommonEdDSA(keyset, exampleIssuer, nil)

	// Adapter returns Claims by value, not pointer
	parsedClaims, err := verifier.Verify(token)
	require.NoError(t, err)
	require.Equal(t, claims.Issuer, parsedClaims.Issuer)
	require.Equal(t, claims.Subject, parsedClaims.Subject)
	require.ElementsMatch(t, claims.AMR, parsedClaims.AMR)
}
