package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func signBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"meta":{"event_name":"subscription_created"}}`)
	secret := "whsec_test"

	require.True(t, verifySignature(body, signBody(body, secret), secret))
}

func TestVerifySignatureRejectsTampering(t *testing.T) {
	body := []byte(`{"meta":{"event_name":"subscription_created"}}`)
	secret := "whsec_test"
	sig := signBody(body, secret)

	tampered := []byte(`{"meta":{"event_name":"subscription_cancelled"}}`)
	require.False(t, verifySignature(tampered, sig, secret))
	require.False(t, verifySignature(body, sig, "other_secret"))
	require.False(t, verifySignature(body, "deadbeef", secret))
}

func TestVerifySignatureRejectsMissingInputs(t *testing.T) {
	body := []byte(`{}`)
	require.False(t, verifySignature(body, "", "whsec_test"))
	require.False(t, verifySignature(body, signBody(body, ""), ""))
}
