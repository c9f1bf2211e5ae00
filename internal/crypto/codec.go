package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha512"
	"encoding/base64"
	"fmt"

	"github.com/sandevgo/mnemo/internal/core"
	"golang.org/x/crypto/pbkdf2"
)

const (
	saltLength = 16     // 128-bit salt
	ivLength   = 12     // 96 bits for GCM
	tagLength  = 16     // 128-bit authentication tag
	keyLength  = 32     // 256-bit key
	iterations = 100000 // PBKDF2 rounds
)

// Envelope is the authenticated ciphertext payload. Field order matches
// the on-disk layout: salt, nonce, auth tag, ciphertext. JSON encoding
// renders each field as base64.
type Envelope struct {
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	AuthTag    []byte `json:"authTag"`
	Ciphertext []byte `json:"ciphertext"`
}

// Codec encrypts and decrypts opaque byte payloads with a key derived
// from a master passphrase. Every Encrypt draws a fresh salt and nonce,
// so identical plaintexts never produce identical envelopes.
type Codec struct {
	masterKey []byte
}

func NewCodec(masterKey string) (*Codec, error) {
	if len(masterKey) < keyLength {
		return nil, core.ErrKeyTooShort
	}
	return &Codec{masterKey: []byte(masterKey)}, nil
}

func (c *Codec) deriveKey(salt []byte) []byte {
	return pbkdf2.Key(c.masterKey, salt, iterations, keyLength, sha512.New)
}

func (c *Codec) Encrypt(plaintext []byte) (*Envelope, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	nonce := make([]byte, ivLength)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	gcm, err := c.newGCM(salt)
	if err != nil {
		return nil, err
	}

	// Seal appends the tag to the ciphertext; split it back out so the
	// envelope carries the tag as its own field.
	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	body := sealed[:len(sealed)-tagLength]
	tag := sealed[len(sealed)-tagLength:]

	return &Envelope{
		Salt:       salt,
		Nonce:      nonce,
		AuthTag:    tag,
		Ciphertext: body,
	}, nil
}

// Decrypt verifies the authentication tag and returns the original
// plaintext. A wrong key or tampered envelope yields ErrDecryptionFailed,
// never partially-decrypted data.
func (c *Codec) Decrypt(env *Envelope) ([]byte, error) {
	if env == nil || len(env.Salt) != saltLength || len(env.Nonce) != ivLength || len(env.AuthTag) != tagLength {
		return nil, core.ErrDecryptionFailed
	}

	gcm, err := c.newGCM(env.Salt)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(env.Ciphertext)+tagLength)
	sealed = append(sealed, env.Ciphertext...)
	sealed = append(sealed, env.AuthTag...)

	plaintext, err := gcm.Open(nil, env.Nonce, sealed, nil)
	if err != nil {
		return nil, core.ErrDecryptionFailed
	}
	return plaintext, nil
}

func (c *Codec) newGCM(salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.deriveKey(salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithTagSize(block, tagLength)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// GenerateMasterKey returns a fresh random key suitable for MNEMO_MASTER_KEY.
func GenerateMasterKey() (string, error) {
	key := make([]byte, keyLength)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
