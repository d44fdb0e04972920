package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestGenerateAndValidateToken(t *testing.T) {
	exp := time.Now().Add(5 * time.Minute).Unix()
	tok, err := GenerateSessionToken("secret123", Claims{SessionID: "abc", FormID: "contact.v2", Exp: exp})
	require.NoError(t, err)

	c, err := ValidateSessionToken("secret123", tok, "abc", "contact.v2", time.Now(), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, Claims{SessionID: "abc", FormID: "contact.v2", Exp: exp}, c)

	c, err = ValidateSessionToken("secret123", tok, "", "", time.Now(), 0)
	require.NoError(t, err)
	assert.Equal(t, "abc", c.SessionID)
}

func TestTokenRejections(t *testing.T) {
	now := time.Now()
	tok, err := GenerateSessionToken("secret123", Claims{SessionID: "abc", FormID: "f1", Exp: now.Add(time.Minute).Unix()})
	require.NoError(t, err)

	_, err = ValidateSessionToken("other", tok, "abc", "f1", now, 0)
	assert.ErrorIs(t, err, ErrTokenSig)
	_, err = ValidateSessionToken("secret123", tok, "xyz", "f1", now, 0)
	assert.ErrorIs(t, err, ErrTokenSID)
	_, err = ValidateSessionToken("secret123", tok, "abc", "f2", now, 0)
	assert.ErrorIs(t, err, ErrTokenForm)
	_, err = ValidateSessionToken("secret123", tok, "abc", "f1", now.Add(2*time.Minute), 30*time.Second)
	assert.ErrorIs(t, err, ErrTokenExp)
	_, err = ValidateSessionToken("secret123", tok, "abc", "f1", now.Add(2*time.Minute), 2*time.Minute)
	assert.NoError(t, err)
	_, err = ValidateSessionToken("secret123", "!!!", "", "", now, 0)
	assert.ErrorIs(t, err, ErrTokenFormat)

	_, err = GenerateSessionToken("", Claims{SessionID: "abc"})
	assert.Error(t, err)
	_, err = GenerateSessionToken("s", Claims{FormID: "f1"})
	assert.ErrorIs(t, err, ErrTokenFormat)
}

func TestTamperedTokenNeverValidates(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tok, err := GenerateSessionToken("secret123", Claims{SessionID: "sid", FormID: "form", Exp: time.Now().Add(time.Hour).Unix()})
		if err != nil {
			rt.Fatalf("generate: %v", err)
		}
		i := rapid.IntRange(0, len(tok)-1).Draw(rt, "pos")
		ch := rapid.SampledFrom([]byte("ABCDEFabcdef0123456789-_")).Draw(rt, "char")
		if tok[i] == ch {
			return
		}
		bad := tok[:i] + string(ch) + tok[i+1:]
		c, err := ValidateSessionToken("secret123", bad, "", "", time.Now(), 0)
		if err == nil && (c.SessionID != "sid" || c.FormID != "form") {
			rt.Fatalf("tampered token accepted with claims %+v", c)
		}
	})
}
