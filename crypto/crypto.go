package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/sha3"
)

// Encrypt seals data with AES-GCM under the base64 encoded key, prefixing
// the random nonce to the ciphertext.
func Encrypt(data []byte, keyBase64 string) (ciphertext []byte, err error) {
	key, err := base64.StdEncoding.DecodeString(keyBase64)
	if err != nil {
		return
	}
	c, err := aes.NewCipher(key)
	if err != nil {
		return
	}
	gcm, err := cipher.NewGCM(c)
	if err != nil {
		return
	}

	nonce := make([]byte, gcm.NonceSize())
	_, err = io.ReadFull(rand.Reader, nonce)
	if err != nil {
		return
	}

	ciphertext = gcm.Seal(nonce, nonce, data, nil)
	return
}

// Decrypt opens a ciphertext produced by Encrypt.
func Decrypt(ciphertextAndNonce []byte, keyBase64 string) (data []byte, err error) {
	key, err := base64.StdEncoding.DecodeString(keyBase64)
	if err != nil {
		return
	}
	c, err := aes.NewCipher(key)
	if err != nil {
		return
	}
	gcm, err := cipher.NewGCM(c)
	if err != nil {
		return
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertextAndNonce) < nonceSize {
		err = errors.New("ciphertext size is less than nonceSize")
		return
	}

	nonce, ciphertext := ciphertextAndNonce[:nonceSize], ciphertextAndNonce[nonceSize:]
	data, err = gcm.Open(nil, nonce, ciphertext, nil)
	return
}

// DeriveKey turns a passphrase into a base64 encoded 256 bit key usable
// with Encrypt and Decrypt.
func DeriveKey(passphrase string) string {
	b := sha3.Sum256([]byte(passphrase))
	return base64.StdEncoding.EncodeToString(b[:])
}

// GenKey returns a random base64 encoded 256 bit key.
func GenKey() (keyBase64 string, err error) {
	b := make([]byte, 32)
	_, err = rand.Read(b)
	if err != nil {
		return
	}
	keyBase64 = base64.StdEncoding.EncodeToString(b)
	return
}
