// Package types contains the global state data model shared by the engine,
// the state backends and the test support helpers: keys, CL types and values,
// stored values and API errors.
package types

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// ErrInvalidKey is returned when a key cannot be parsed or decoded
var ErrInvalidKey = errors.New("invalid key")

// AddrLength is the size of every address stored in a key
const AddrLength = 32

// AccountHash identifies an account in global state
type AccountHash [AddrLength]byte

// HashAddr addresses a contract or contract package
type HashAddr [AddrLength]byte

// DictionaryAddr addresses a single dictionary item
type DictionaryAddr [AddrLength]byte

func (h AccountHash) String() string {
	return hex.EncodeToString(h[:])
}

func (h HashAddr) String() string {
	return hex.EncodeToString(h[:])
}

func (h DictionaryAddr) String() string {
	return hex.EncodeToString(h[:])
}

// Blake2b256 hashes the concatenation of parts
func Blake2b256(parts ...[]byte) [32]byte {
	h, _ := blake2b.New256(nil)
	for _, p := range parts {
		h.Write(p)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// AccessRights is the bit set carried by a URef
type AccessRights uint8

const (
	AccessNone         AccessRights = 0
	AccessRead         AccessRights = 1
	AccessWrite        AccessRights = 2
	AccessAdd          AccessRights = 4
	AccessReadWrite                 = AccessRead | AccessWrite
	AccessReadAddWrite              = AccessRead | AccessAdd | AccessWrite
)

func (a AccessRights) CanRead() bool  { return a&AccessRead != 0 }
func (a AccessRights) CanWrite() bool { return a&AccessWrite != 0 }

// URef is an unforgeable reference to a stored value
type URef struct {
	Addr   [AddrLength]byte
	Access AccessRights
}

// NewURef creates a URef with the given address and rights
func NewURef(addr [AddrLength]byte, access AccessRights) URef {
	return URef{Addr: addr, Access: access}
}

// Formatted renders the URef as uref-<hex>-<rights>
func (u URef) Formatted() string {
	return fmt.Sprintf("uref-%s-%03o", hex.EncodeToString(u.Addr[:]), uint8(u.Access))
}

func (u URef) String() string {
	return u.Formatted()
}

// WithAccess returns a copy of u with different rights
func (u URef) WithAccess(access AccessRights) URef {
	u.Access = access
	return u
}

// KeyTag identifies the Key variant in its binary form
type KeyTag uint8

const (
	KeyTagAccount    KeyTag = 0
	KeyTagHash       KeyTag = 1
	KeyTagURef       KeyTag = 2
	KeyTagDictionary KeyTag = 9
)

func (t KeyTag) String() string {
	switch t {
	case KeyTagAccount:
		return "Account"
	case KeyTagHash:
		return "Hash"
	case KeyTagURef:
		return "URef"
	case KeyTagDictionary:
		return "Dictionary"
	default:
		return "Unknown(" + strconv.Itoa(int(t)) + ")"
	}
}

const (
	prefixAccount    = "account-hash-"
	prefixHash       = "hash-"
	prefixURef       = "uref-"
	prefixDictionary = "dictionary-"
)

// Key addresses an entry in global state. The zero value is not a valid key.
type Key struct {
	Tag    KeyTag
	Addr   [AddrLength]byte
	Access AccessRights // only meaningful for KeyTagURef
}

func AccountKey(h AccountHash) Key { return Key{Tag: KeyTagAccount, Addr: h} }
func HashKey(h HashAddr) Key       { return Key{Tag: KeyTagHash, Addr: h} }
func URefKey(u URef) Key           { return Key{Tag: KeyTagURef, Addr: u.Addr, Access: u.Access} }
func DictionaryKey(d DictionaryAddr) Key {
	return Key{Tag: KeyTagDictionary, Addr: d}
}

// AsURef returns the key as a URef if it is one
func (k Key) AsURef() (URef, bool) {
	if k.Tag != KeyTagURef {
		return URef{}, false
	}
	return URef{Addr: k.Addr, Access: k.Access}, true
}

func (k Key) AsAccount() (AccountHash, bool) {
	if k.Tag != KeyTagAccount {
		return AccountHash{}, false
	}
	return AccountHash(k.Addr), true
}

func (k Key) AsHash() (HashAddr, bool) {
	if k.Tag != KeyTagHash {
		return HashAddr{}, false
	}
	return HashAddr(k.Addr), true
}

// Normalize strips access rights so that URef keys with different rights
// address the same global state entry.
func (k Key) Normalize() Key {
	if k.Tag == KeyTagURef {
		k.Access = AccessNone
	}
	return k
}

// Formatted renders the key in its prefixed text form
func (k Key) Formatted() string {
	switch k.Tag {
	case KeyTagAccount:
		return prefixAccount + hex.EncodeToString(k.Addr[:])
	case KeyTagHash:
		return prefixHash + hex.EncodeToString(k.Addr[:])
	case KeyTagURef:
		return URef{Addr: k.Addr, Access: k.Access}.Formatted()
	case KeyTagDictionary:
		return prefixDictionary + hex.EncodeToString(k.Addr[:])
	default:
		return fmt.Sprintf("unknown-%d-%s", k.Tag, hex.EncodeToString(k.Addr[:]))
	}
}

func (k Key) String() string {
	return k.Formatted()
}

// GoString renders the key variant and address, e.g. Hash(ab12...)
func (k Key) GoString() string {
	return fmt.Sprintf("%s(%s)", k.Tag, hex.EncodeToString(k.Addr[:]))
}

func parseAddr(s string) ([AddrLength]byte, error) {
	var addr [AddrLength]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return addr, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(b) != AddrLength {
		return addr, fmt.Errorf("%w: address must be %d bytes, got %d", ErrInvalidKey, AddrLength, len(b))
	}
	copy(addr[:], b)
	return addr, nil
}

// ParseKey parses the text form produced by Key.Formatted
func ParseKey(s string) (Key, error) {
	switch {
	case strings.HasPrefix(s, prefixAccount):
		addr, err := parseAddr(strings.TrimPrefix(s, prefixAccount))
		return Key{Tag: KeyTagAccount, Addr: addr}, err
	case strings.HasPrefix(s, prefixHash):
		addr, err := parseAddr(strings.TrimPrefix(s, prefixHash))
		return Key{Tag: KeyTagHash, Addr: addr}, err
	case strings.HasPrefix(s, prefixDictionary):
		addr, err := parseAddr(strings.TrimPrefix(s, prefixDictionary))
		return Key{Tag: KeyTagDictionary, Addr: addr}, err
	case strings.HasPrefix(s, prefixURef):
		u, err := ParseURef(s)
		if err != nil {
			return Key{}, err
		}
		return URefKey(u), nil
	default:
		return Key{}, fmt.Errorf("%w: unknown prefix in %q", ErrInvalidKey, s)
	}
}

// ParseURef parses uref-<hex>-<octal rights>
func ParseURef(s string) (URef, error) {
	rest, ok := strings.CutPrefix(s, prefixURef)
	if !ok {
		return URef{}, fmt.Errorf("%w: missing uref prefix", ErrInvalidKey)
	}
	i := strings.LastIndexByte(rest, '-')
	if i < 0 {
		return URef{}, fmt.Errorf("%w: missing access rights", ErrInvalidKey)
	}
	addr, err := parseAddr(rest[:i])
	if err != nil {
		return URef{}, err
	}
	rights, err := strconv.ParseUint(rest[i+1:], 8, 8)
	if err != nil || rights > uint64(AccessReadAddWrite) {
		return URef{}, fmt.Errorf("%w: invalid access rights %q", ErrInvalidKey, rest[i+1:])
	}
	return URef{Addr: addr, Access: AccessRights(rights)}, nil
}

// Bytes returns the binary form: tag, address and, for URefs, the rights byte
func (k Key) Bytes() []byte {
	w := &Writer{}
	k.write(w)
	return w.Bytes()
}

func (k Key) write(w *Writer) {
	w.WriteU8(uint8(k.Tag))
	w.WriteRaw(k.Addr[:])
	if k.Tag == KeyTagURef {
		w.WriteU8(uint8(k.Access))
	}
}

func readKey(r *Reader) (Key, error) {
	tag, err := r.ReadU8()
	if err != nil {
		return Key{}, err
	}
	k := Key{Tag: KeyTag(tag)}
	switch k.Tag {
	case KeyTagAccount, KeyTagHash, KeyTagURef, KeyTagDictionary:
	default:
		return Key{}, fmt.Errorf("%w: unknown key tag %d", ErrFormatting, tag)
	}
	addr, err := r.ReadRaw(AddrLength)
	if err != nil {
		return Key{}, err
	}
	copy(k.Addr[:], addr)
	if k.Tag == KeyTagURef {
		access, err := r.ReadU8()
		if err != nil {
			return Key{}, err
		}
		if AccessRights(access) > AccessReadAddWrite {
			return Key{}, fmt.Errorf("%w: invalid access rights %d", ErrFormatting, access)
		}
		k.Access = AccessRights(access)
	}
	return k, nil
}

// KeyFromBytes decodes the binary form produced by Key.Bytes
func KeyFromBytes(b []byte) (Key, error) {
	r := NewReader(b)
	k, err := readKey(r)
	if err != nil {
		return Key{}, err
	}
	return k, r.Finish()
}

// DictionaryItemAddr derives the address of an item within the dictionary
// rooted at seed.
func DictionaryItemAddr(seed URef, itemKey string) DictionaryAddr {
	return DictionaryAddr(Blake2b256(seed.Addr[:], []byte(itemKey)))
}
