package security

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// HashPayload returns the SHA-256 digest of payload, hex-encoded. The digest
// is the canonical object that gets signed and verified, so large payloads
// never need to be re-read for verification.
func HashPayload(payload []byte) string {
	h := sha256.Sum256(payload)
	return hex.EncodeToString(h[:])
}

// SignDigest signs a hex-encoded SHA-256 digest with the given private key
// using RSA-PSS (SHA-256, maximum salt length) and returns the signature
// Base64-encoded for storage. The caller must have authenticated the key
// holder before invoking this; possession of the private key is what makes
// the signature non-repudiable.
func SignDigest(hexDigest string, privateKeyPEM string) (string, error) {
	priv, err := parseRSAPrivateKey(privateKeyPEM)
	if err != nil {
		return "", err
	}
	digest, err := hex.DecodeString(hexDigest)
	if err != nil {
		return "", err
	}
	sig, err := rsa.SignPSS(rand.Reader, priv, crypto.SHA256, digest, &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthAuto,
	})
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// VerifyDigest reports whether sigB64 is a valid signature over the
// hex-encoded digest under the given public key. Malformed input, a wrong
// key, and a bad signature all collapse to false; callers cannot distinguish
// the causes.
func VerifyDigest(hexDigest, sigB64, publicKeyPEM string) bool {
	pub, err := parseRSAPublicKey(publicKeyPEM)
	if err != nil {
		return false
	}
	digest, err := hex.DecodeString(hexDigest)
	if err != nil {
		return false
	}
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return false
	}
	return rsa.VerifyPSS(pub, crypto.SHA256, digest, sig, &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthAuto,
	}) == nil
}
