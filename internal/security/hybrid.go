package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

// ErrDecryptFailed is the single failure returned for every decryption
// problem: bad key, corrupted wrapped key, truncated ciphertext, or invalid
// padding. Callers must not be able to tell these apart.
var ErrDecryptFailed = errors.New("decryption failed")

const aesKeyLen = 32

// EncryptPayload envelope-encrypts plaintext for the holder of publicKeyPEM.
// A fresh AES-256 key and 16-byte IV are generated per call; the payload is
// encrypted with AES-CBC using trailing-byte-count padding and returned with
// the IV prepended, so decryption is self-contained. The AES key is wrapped
// with RSA-OAEP (SHA-256 MGF) and returned Base64-encoded for storage.
func EncryptPayload(plaintext []byte, publicKeyPEM string) (ciphertext []byte, wrappedKey string, err error) {
	pub, err := parseRSAPublicKey(publicKeyPEM)
	if err != nil {
		return nil, "", err
	}

	key := make([]byte, aesKeyLen)
	if _, err := rand.Read(key); err != nil {
		return nil, "", err
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, "", err
	}
	padded := padBlock(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)

	ciphertext = make([]byte, 0, len(iv)+len(out))
	ciphertext = append(ciphertext, iv...)
	ciphertext = append(ciphertext, out...)

	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, key, nil)
	if err != nil {
		return nil, "", err
	}
	return ciphertext, base64.StdEncoding.EncodeToString(wrapped), nil
}

// DecryptPayload reverses EncryptPayload: it unwraps the AES key with the
// private key, splits the IV from the ciphertext, decrypts, and strips the
// padding. Every failure mode collapses to ErrDecryptFailed.
func DecryptPayload(ciphertext []byte, wrappedKey string, privateKeyPEM string) ([]byte, error) {
	priv, err := parseRSAPrivateKey(privateKeyPEM)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	wrapped, err := base64.StdEncoding.DecodeString(wrappedKey)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	key, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, wrapped, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}

	if len(ciphertext) < aes.BlockSize || (len(ciphertext)-aes.BlockSize)%aes.BlockSize != 0 {
		return nil, ErrDecryptFailed
	}
	iv := ciphertext[:aes.BlockSize]
	body := ciphertext[aes.BlockSize:]
	if len(body) == 0 {
		return nil, ErrDecryptFailed
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	padded := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, body)

	plaintext, ok := unpadBlock(padded, aes.BlockSize)
	if !ok {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}

// padBlock appends n copies of byte n so len is a multiple of blockSize.
// A full block of padding is added when the input is already aligned.
func padBlock(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	out := make([]byte, len(b)+n)
	copy(out, b)
	for i := len(b); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

// unpadBlock strips trailing-byte-count padding, reporting false when the
// padding structure is invalid (wrong key or tampered ciphertext).
func unpadBlock(b []byte, blockSize int) ([]byte, bool) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, false
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize || n > len(b) {
		return nil, false
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, false
		}
	}
	return b[:len(b)-n], true
}
