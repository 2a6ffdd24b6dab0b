// Package keys derives the secret and public keys that name accounts.
// Keys are created deterministically from fixed seeds so that test accounts
// are stable across runs.
package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/govm-net/enginetest-support/types"
)

// Algorithm tags the key scheme in serialized public keys
type Algorithm uint8

const (
	Ed25519   Algorithm = 1
	Secp256k1 Algorithm = 2
)

// SeedSize is the length of the seed accepted by the key constructors
const SeedSize = 32

var (
	ErrInvalidSeed      = errors.New("invalid seed")
	ErrInvalidPublicKey = errors.New("invalid public key")
	ErrUnknownAlgorithm = errors.New("unknown algorithm")
)

func (a Algorithm) String() string {
	switch a {
	case Ed25519:
		return "ed25519"
	case Secp256k1:
		return "secp256k1"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(a))
	}
}

// ParseAlgorithm accepts the lower-case algorithm name
func ParseAlgorithm(s string) (Algorithm, error) {
	switch s {
	case "ed25519":
		return Ed25519, nil
	case "secp256k1":
		return Secp256k1, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
}

// SecretKey is a private key of either supported scheme
type SecretKey struct {
	algo    Algorithm
	ed      ed25519.PrivateKey
	secp256 *secp256k1.PrivateKey
}

// Ed25519FromBytes derives an ed25519 secret key from a 32-byte seed
func Ed25519FromBytes(seed []byte) (SecretKey, error) {
	if len(seed) != ed25519.SeedSize {
		return SecretKey{}, fmt.Errorf("%w: ed25519 seed must be %d bytes, got %d", ErrInvalidSeed, ed25519.SeedSize, len(seed))
	}
	return SecretKey{algo: Ed25519, ed: ed25519.NewKeyFromSeed(seed)}, nil
}

// Secp256k1FromBytes uses b as the secp256k1 scalar. b must be 32 bytes,
// non-zero and below the curve order.
func Secp256k1FromBytes(b []byte) (SecretKey, error) {
	if len(b) != SeedSize {
		return SecretKey{}, fmt.Errorf("%w: secp256k1 key must be %d bytes, got %d", ErrInvalidSeed, SeedSize, len(b))
	}
	var s secp256k1.ModNScalar
	if overflow := s.SetByteSlice(b); overflow {
		return SecretKey{}, fmt.Errorf("%w: secp256k1 key exceeds curve order", ErrInvalidSeed)
	}
	if s.IsZero() {
		return SecretKey{}, fmt.Errorf("%w: secp256k1 key is zero", ErrInvalidSeed)
	}
	return SecretKey{algo: Secp256k1, secp256: secp256k1.NewPrivateKey(&s)}, nil
}

// FromSeed dispatches to the constructor for algo
func FromSeed(algo Algorithm, seed []byte) (SecretKey, error) {
	switch algo {
	case Ed25519:
		return Ed25519FromBytes(seed)
	case Secp256k1:
		return Secp256k1FromBytes(seed)
	}
	return SecretKey{}, fmt.Errorf("%w: %d", ErrUnknownAlgorithm, algo)
}

func (sk SecretKey) Algorithm() Algorithm {
	return sk.algo
}

// Sign signs the sha256 digest of msg for secp256k1 and msg itself for ed25519
func (sk SecretKey) Sign(msg []byte) []byte {
	switch sk.algo {
	case Ed25519:
		return ed25519.Sign(sk.ed, msg)
	case Secp256k1:
		digest := sha256.Sum256(msg)
		return ecdsa.SignCompact(sk.secp256, digest[:], true)[1:]
	}
	return nil
}

// PublicKey is the public half of a SecretKey
type PublicKey struct {
	algo Algorithm
	raw  []byte
}

// PublicKeyFrom computes the public key of sk
func PublicKeyFrom(sk SecretKey) PublicKey {
	switch sk.algo {
	case Ed25519:
		pub := sk.ed.Public().(ed25519.PublicKey)
		return PublicKey{algo: Ed25519, raw: append([]byte(nil), pub...)}
	case Secp256k1:
		return PublicKey{algo: Secp256k1, raw: sk.secp256.PubKey().SerializeCompressed()}
	}
	return PublicKey{}
}

// NewPublicKey validates raw key bytes for algo
func NewPublicKey(algo Algorithm, raw []byte) (PublicKey, error) {
	switch algo {
	case Ed25519:
		if len(raw) != ed25519.PublicKeySize {
			return PublicKey{}, fmt.Errorf("%w: ed25519 key must be %d bytes", ErrInvalidPublicKey, ed25519.PublicKeySize)
		}
	case Secp256k1:
		if _, err := secp256k1.ParsePubKey(raw); err != nil {
			return PublicKey{}, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
		}
	default:
		return PublicKey{}, fmt.Errorf("%w: %d", ErrUnknownAlgorithm, algo)
	}
	return PublicKey{algo: algo, raw: append([]byte(nil), raw...)}, nil
}

// ParsePublicKeyHex parses the tagged hex form produced by Hex
func ParsePublicKeyHex(s string) (PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return PublicKey{}, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	if len(b) < 1 {
		return PublicKey{}, fmt.Errorf("%w: empty", ErrInvalidPublicKey)
	}
	return NewPublicKey(Algorithm(b[0]), b[1:])
}

func (pk PublicKey) Algorithm() Algorithm {
	return pk.algo
}

// Raw returns the key bytes without the algorithm tag
func (pk PublicKey) Raw() []byte {
	return append([]byte(nil), pk.raw...)
}

// Bytes returns the algorithm tag followed by the raw key
func (pk PublicKey) Bytes() []byte {
	return append([]byte{uint8(pk.algo)}, pk.raw...)
}

func (pk PublicKey) Hex() string {
	return hex.EncodeToString(pk.Bytes())
}

func (pk PublicKey) String() string {
	return pk.Hex()
}

func (pk PublicKey) Equal(o PublicKey) bool {
	return pk.algo == o.algo && string(pk.raw) == string(o.raw)
}

// AccountHash is blake2b-256 over the algorithm name, a zero byte and the raw key
func (pk PublicKey) AccountHash() types.AccountHash {
	return types.AccountHash(types.Blake2b256([]byte(pk.algo.String()), []byte{0}, pk.raw))
}

// Verify checks a signature produced by SecretKey.Sign
func (pk PublicKey) Verify(msg, sig []byte) bool {
	switch pk.algo {
	case Ed25519:
		return len(pk.raw) == ed25519.PublicKeySize && ed25519.Verify(ed25519.PublicKey(pk.raw), msg, sig)
	case Secp256k1:
		if len(sig) != 64 {
			return false
		}
		pub, err := secp256k1.ParsePubKey(pk.raw)
		if err != nil {
			return false
		}
		var r, s secp256k1.ModNScalar
		if r.SetByteSlice(sig[:32]) || s.SetByteSlice(sig[32:]) {
			return false
		}
		digest := sha256.Sum256(msg)
		return ecdsa.NewSignature(&r, &s).Verify(digest[:], pub)
	}
	return false
}

// CLType lets public keys be stored as CL values
func (pk PublicKey) CLType() types.CLType {
	return types.CLPublicKey
}

func (pk PublicKey) MarshalCL(w *types.Writer) error {
	if pk.algo != Ed25519 && pk.algo != Secp256k1 {
		return fmt.Errorf("%w: %d", ErrUnknownAlgorithm, pk.algo)
	}
	w.WriteRaw(pk.Bytes())
	return nil
}

func (pk *PublicKey) UnmarshalCL(r *types.Reader) error {
	tag, err := r.ReadU8()
	if err != nil {
		return err
	}
	var size int
	switch Algorithm(tag) {
	case Ed25519:
		size = ed25519.PublicKeySize
	case Secp256k1:
		size = secp256k1.PubKeyBytesLenCompressed
	default:
		return fmt.Errorf("%w: %d", ErrUnknownAlgorithm, tag)
	}
	raw, err := r.ReadRaw(size)
	if err != nil {
		return err
	}
	parsed, err := NewPublicKey(Algorithm(tag), raw)
	if err != nil {
		return err
	}
	*pk = parsed
	return nil
}
