package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// SaltSize - размер соли в байтах
const SaltSize = 32

// KeyLen - длина ключа шифрования в байтах (AES-256)
const KeyLen = 32

// KeyParams задает стоимость Argon2id при деривации ключа
type KeyParams struct {
	Time    uint32 // количество итераций (time cost)
	Memory  uint32 // объем памяти в KB
	Threads uint8  // количество параллельных потоков
}

// DefaultKeyParams returns the parameters used for at-rest encryption keys.
func DefaultKeyParams() KeyParams {
	return KeyParams{
		Time:    1,
		Memory:  64 * 1024,
		Threads: 4,
	}
}

// GenerateSalt генерирует криптографически случайную соль
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// GenerateSaltBase64 генерирует соль и возвращает ее в Base64
func GenerateSaltBase64() (string, error) {
	salt, err := GenerateSalt()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(salt), nil
}

// DeriveKey derives the local-store encryption key from a passphrase.
func DeriveKey(passphrase string, salt []byte, params KeyParams) ([]byte, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase cannot be empty")
	}
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("salt must be %d bytes, got %d", SaltSize, len(salt))
	}

	return argon2.IDKey([]byte(passphrase), salt, params.Time, params.Memory, params.Threads, KeyLen), nil
}

// DeriveKeyFromBase64Salt derives the key from a Base64-encoded salt.
func DeriveKeyFromBase64Salt(passphrase, saltBase64 string, params KeyParams) ([]byte, error) {
	salt, err := base64.StdEncoding.DecodeString(saltBase64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	return DeriveKey(passphrase, salt, params)
}
