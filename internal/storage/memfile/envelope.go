package memfile

import (
	"encoding/json"

	"github.com/sandevgo/mnemo/internal/core"
	"github.com/sandevgo/mnemo/internal/crypto"
)

// storedRecord is the on-disk record shape. Payload carries the deflated
// text/response pair when Compressed is set.
type storedRecord struct {
	core.MemoryRecord
	Payload []byte `json:"payload,omitempty"`
}

// plainFile is the unencrypted store layout.
type plainFile struct {
	Messages []storedRecord `json:"messages"`
}

// fileVariant tags the outcome of decoding the store file. Every branch
// of the fallback ladder is an explicit case rather than a chain of
// rescued errors.
type fileVariant int

const (
	variantPlain fileVariant = iota
	variantEncrypted
	variantMalformed
)

// decodeFile classifies raw store bytes. A "messages" field marks the
// legacy plaintext layout; salt/nonce/ciphertext fields mark an encrypted
// envelope; anything else is malformed.
func decodeFile(data []byte) (fileVariant, *plainFile, *crypto.Envelope) {
	var probe struct {
		Messages   *[]storedRecord `json:"messages"`
		Salt       []byte          `json:"salt"`
		Nonce      []byte          `json:"nonce"`
		AuthTag    []byte          `json:"authTag"`
		Ciphertext []byte          `json:"ciphertext"`
	}

	if err := json.Unmarshal(data, &probe); err != nil {
		return variantMalformed, nil, nil
	}

	if probe.Messages != nil {
		return variantPlain, &plainFile{Messages: *probe.Messages}, nil
	}

	if len(probe.Salt) > 0 && len(probe.Nonce) > 0 && len(probe.Ciphertext) > 0 {
		return variantEncrypted, nil, &crypto.Envelope{
			Salt:       probe.Salt,
			Nonce:      probe.Nonce,
			AuthTag:    probe.AuthTag,
			Ciphertext: probe.Ciphertext,
		}
	}

	return variantMalformed, nil, nil
}
