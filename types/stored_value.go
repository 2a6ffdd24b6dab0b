package types

import (
	"fmt"
	"sort"
)

// NamedKeys maps names to keys in an account's or contract's key directory
type NamedKeys map[string]Key

// Names returns the names in sorted order
func (nk NamedKeys) Names() []string {
	names := make([]string, 0, len(nk))
	for name := range nk {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (nk NamedKeys) Clone() NamedKeys {
	out := make(NamedKeys, len(nk))
	for name, key := range nk {
		out[name] = key
	}
	return out
}

// Account is the stored form of an account
type Account struct {
	Hash      AccountHash
	NamedKeys NamedKeys
	MainPurse URef
}

// Contract is the stored form of an installed contract. Module names the
// implementation that serves the contract's entry points.
type Contract struct {
	PackageHash HashAddr
	Module      string
	EntryPoints []string
	NamedKeys   NamedKeys
}

// HasEntryPoint reports whether name is one of the contract's entry points
func (c *Contract) HasEntryPoint(name string) bool {
	for _, ep := range c.EntryPoints {
		if ep == name {
			return true
		}
	}
	return false
}

// DictionaryValue wraps a value stored under a dictionary item key
type DictionaryValue struct {
	Value    CLValue
	SeedAddr [AddrLength]byte
	ItemKey  string
}

// StoredValueKind identifies the StoredValue variant
type StoredValueKind uint8

const (
	StoredCLValue StoredValueKind = iota
	StoredAccount
	StoredContract
	StoredDictionary
)

func (k StoredValueKind) String() string {
	switch k {
	case StoredCLValue:
		return "CLValue"
	case StoredAccount:
		return "Account"
	case StoredContract:
		return "Contract"
	case StoredDictionary:
		return "Dictionary"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(k))
	}
}

// StoredValue is a value held in global state. Exactly one of the variant
// fields is set, according to Kind.
type StoredValue struct {
	Kind       StoredValueKind
	CLValue    *CLValue
	Account    *Account
	Contract   *Contract
	Dictionary *DictionaryValue
}

func NewStoredCLValue(v CLValue) StoredValue {
	return StoredValue{Kind: StoredCLValue, CLValue: &v}
}

func NewStoredAccount(a Account) StoredValue {
	return StoredValue{Kind: StoredAccount, Account: &a}
}

func NewStoredContract(c Contract) StoredValue {
	return StoredValue{Kind: StoredContract, Contract: &c}
}

func NewStoredDictionary(d DictionaryValue) StoredValue {
	return StoredValue{Kind: StoredDictionary, Dictionary: &d}
}

// AsCLValue returns the CLValue variant
func (v StoredValue) AsCLValue() (CLValue, bool) {
	if v.Kind != StoredCLValue || v.CLValue == nil {
		return CLValue{}, false
	}
	return *v.CLValue, true
}

func (v StoredValue) AsAccount() (*Account, bool) {
	if v.Kind != StoredAccount || v.Account == nil {
		return nil, false
	}
	return v.Account, true
}

func (v StoredValue) AsContract() (*Contract, bool) {
	if v.Kind != StoredContract || v.Contract == nil {
		return nil, false
	}
	return v.Contract, true
}

func (v StoredValue) AsDictionary() (*DictionaryValue, bool) {
	if v.Kind != StoredDictionary || v.Dictionary == nil {
		return nil, false
	}
	return v.Dictionary, true
}

// NamedKeys returns the key directory of an Account or Contract
func (v StoredValue) NamedKeys() (NamedKeys, bool) {
	switch {
	case v.Kind == StoredAccount && v.Account != nil:
		return v.Account.NamedKeys, true
	case v.Kind == StoredContract && v.Contract != nil:
		return v.Contract.NamedKeys, true
	}
	return nil, false
}

// Clone returns a deep copy of v
func (v StoredValue) Clone() StoredValue {
	out := StoredValue{Kind: v.Kind}
	if v.CLValue != nil {
		cv := v.CLValue.Clone()
		out.CLValue = &cv
	}
	if v.Account != nil {
		a := *v.Account
		a.NamedKeys = v.Account.NamedKeys.Clone()
		out.Account = &a
	}
	if v.Contract != nil {
		c := *v.Contract
		c.NamedKeys = v.Contract.NamedKeys.Clone()
		c.EntryPoints = append([]string(nil), v.Contract.EntryPoints...)
		out.Contract = &c
	}
	if v.Dictionary != nil {
		d := *v.Dictionary
		d.Value = v.Dictionary.Value.Clone()
		out.Dictionary = &d
	}
	return out
}

// Bytes returns a deterministic binary form of v, used for state root hashing
func (v StoredValue) Bytes() []byte {
	w := &Writer{}
	w.WriteU8(uint8(v.Kind))
	switch v.Kind {
	case StoredCLValue:
		if v.CLValue != nil {
			v.CLValue.write(w)
		}
	case StoredAccount:
		if v.Account != nil {
			w.WriteRaw(v.Account.Hash[:])
			writeNamedKeys(w, v.Account.NamedKeys)
			w.WriteRaw(URefKey(v.Account.MainPurse).Bytes())
		}
	case StoredContract:
		if v.Contract != nil {
			w.WriteRaw(v.Contract.PackageHash[:])
			w.WriteString(v.Contract.Module)
			eps := append([]string(nil), v.Contract.EntryPoints...)
			sort.Strings(eps)
			w.WriteU32(uint32(len(eps)))
			for _, ep := range eps {
				w.WriteString(ep)
			}
			writeNamedKeys(w, v.Contract.NamedKeys)
		}
	case StoredDictionary:
		if v.Dictionary != nil {
			v.Dictionary.Value.write(w)
			w.WriteRaw(v.Dictionary.SeedAddr[:])
			w.WriteString(v.Dictionary.ItemKey)
		}
	}
	return w.Bytes()
}

func writeNamedKeys(w *Writer, nk NamedKeys) {
	names := nk.Names()
	w.WriteU32(uint32(len(names)))
	for _, name := range names {
		w.WriteString(name)
		nk[name].write(w)
	}
}
