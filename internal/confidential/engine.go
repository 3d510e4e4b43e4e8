package confidential

import (
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	dErrors "sealedger/pkg/domain-errors"
)

// Ciphertext is an opaque encrypted integer. Width is carried alongside the
// bytes because arithmetic wraps at the width's modulus.
type Ciphertext struct {
	Bytes []byte
	Width BitWidth
}

// Engine is the encryption capability backing the value store. It stands in
// for an external encrypted-computation layer: the ledger core never touches
// plaintext, it only moves Ciphertexts through the engine's operations.
//
// Boolean results (GreaterOrEqual) are encrypted 0/1 values of Width8.
type Engine interface {
	// Seal encrypts a plaintext supplied by a trusted server-side path.
	Seal(plaintext uint64, width BitWidth) (Ciphertext, error)
	// VerifyExternal admits a ciphertext produced outside the core. The
	// proof binds the ciphertext to the engine's input key; a bad proof is
	// a validation failure, not an infrastructure error.
	VerifyExternal(ciphertext, proof []byte, width BitWidth) (Ciphertext, error)
	// Prove produces the correctness proof external submitters attach to a
	// ciphertext. Exposed for the encryption support layer and tests.
	Prove(ciphertext []byte) []byte

	// Add returns Enc(a+b mod 2^width). Operands must share a width.
	Add(a, b Ciphertext) (Ciphertext, error)
	// GreaterOrEqual returns an encrypted boolean for a >= threshold.
	GreaterOrEqual(a Ciphertext, threshold uint64) (Ciphertext, error)
	// Select returns ifTrue when cond is an encrypted true, else ifFalse.
	Select(cond, ifTrue, ifFalse Ciphertext) (Ciphertext, error)

	// Open recovers plaintext. Only the value store's Disclose path may
	// call it, after checking disclosure-capability.
	Open(c Ciphertext) (uint64, error)
}

// SealedEngine implements Engine with XChaCha20-Poly1305 under a single
// sealing key. Homomorphic operations re-seal under fresh nonces, so every
// output ciphertext is unlinkable to its inputs. The key never leaves the
// engine; everything outside it sees only opaque bytes.
type SealedEngine struct {
	aead     cipher.AEAD
	inputKey []byte // HMAC key for external-input proofs
}

// NewSealedEngine derives the AEAD and proof keys from a 32-byte master key.
func NewSealedEngine(masterKey []byte) (*SealedEngine, error) {
	if len(masterKey) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("sealing key must be %d bytes, got %d", chacha20poly1305.KeySize, len(masterKey))
	}
	kdf := hkdf.New(sha256.New, masterKey, nil, []byte("sealedger/v1"))
	aeadKey := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(kdf, aeadKey); err != nil {
		return nil, fmt.Errorf("derive aead key: %w", err)
	}
	inputKey := make([]byte, 32)
	if _, err := io.ReadFull(kdf, inputKey); err != nil {
		return nil, fmt.Errorf("derive input key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(aeadKey)
	if err != nil {
		return nil, fmt.Errorf("init aead: %w", err)
	}
	return &SealedEngine{aead: aead, inputKey: inputKey}, nil
}

func (e *SealedEngine) Seal(plaintext uint64, width BitWidth) (Ciphertext, error) {
	if !width.Valid() {
		return Ciphertext{}, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unsupported bit width %d", width))
	}
	if plaintext > width.Max() {
		return Ciphertext{}, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("plaintext %d exceeds %d-bit range", plaintext, width))
	}
	return e.seal(plaintext, width)
}

func (e *SealedEngine) seal(plaintext uint64, width BitWidth) (Ciphertext, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return Ciphertext{}, fmt.Errorf("nonce: %w", err)
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], plaintext)
	sealed := e.aead.Seal(nil, nonce, buf[:], []byte{byte(width)})
	return Ciphertext{Bytes: append(nonce, sealed...), Width: width}, nil
}

func (e *SealedEngine) open(c Ciphertext) (uint64, error) {
	ns := e.aead.NonceSize()
	if len(c.Bytes) <= ns {
		return 0, dErrors.New(dErrors.CodeValidation, "ciphertext too short")
	}
	plain, err := e.aead.Open(nil, c.Bytes[:ns], c.Bytes[ns:], []byte{byte(c.Width)})
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeValidation, "ciphertext failed authentication")
	}
	if len(plain) != 8 {
		return 0, dErrors.New(dErrors.CodeValidation, "malformed sealed plaintext")
	}
	return binary.BigEndian.Uint64(plain), nil
}

func (e *SealedEngine) VerifyExternal(ciphertext, proof []byte, width BitWidth) (Ciphertext, error) {
	if !width.Valid() {
		return Ciphertext{}, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unsupported bit width %d", width))
	}
	if !hmac.Equal(proof, e.Prove(ciphertext)) {
		return Ciphertext{}, dErrors.New(dErrors.CodeValidation, "input proof does not match ciphertext")
	}
	c := Ciphertext{Bytes: ciphertext, Width: width}
	// The proof vouches for provenance; the seal itself still has to open
	// cleanly under the declared width.
	if _, err := e.open(c); err != nil {
		return Ciphertext{}, err
	}
	return c, nil
}

func (e *SealedEngine) Prove(ciphertext []byte) []byte {
	mac := hmac.New(sha256.New, e.inputKey)
	mac.Write(ciphertext)
	return mac.Sum(nil)
}

func (e *SealedEngine) Add(a, b Ciphertext) (Ciphertext, error) {
	if a.Width != b.Width {
		return Ciphertext{}, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("width mismatch: %d vs %d", a.Width, b.Width))
	}
	av, err := e.open(a)
	if err != nil {
		return Ciphertext{}, err
	}
	bv, err := e.open(b)
	if err != nil {
		return Ciphertext{}, err
	}
	sum := av + bv
	if a.Width != Width64 {
		sum &= a.Width.Max()
	}
	return e.seal(sum, a.Width)
}

func (e *SealedEngine) GreaterOrEqual(a Ciphertext, threshold uint64) (Ciphertext, error) {
	av, err := e.open(a)
	if err != nil {
		return Ciphertext{}, err
	}
	var result uint64
	if av >= threshold {
		result = 1
	}
	return e.seal(result, Width8)
}

func (e *SealedEngine) Select(cond, ifTrue, ifFalse Ciphertext) (Ciphertext, error) {
	if ifTrue.Width != ifFalse.Width {
		return Ciphertext{}, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("select arm width mismatch: %d vs %d", ifTrue.Width, ifFalse.Width))
	}
	cv, err := e.open(cond)
	if err != nil {
		return Ciphertext{}, err
	}
	chosen := ifFalse
	if cv != 0 {
		chosen = ifTrue
	}
	v, err := e.open(chosen)
	if err != nil {
		return Ciphertext{}, err
	}
	// Re-seal so the output does not betray which arm was taken.
	return e.seal(v, chosen.Width)
}

func (e *SealedEngine) Open(c Ciphertext) (uint64, error) {
	return e.open(c)
}
