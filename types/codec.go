package types

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"sort"
	"unicode/utf8"
)

// ErrUnsupportedType is returned for Go types that have no CLType mapping
var ErrUnsupportedType = errors.New("unsupported type")

// Unit is the Go counterpart of the Unit CLType
type Unit struct{}

// CLMarshaler is implemented by value types with their own CL representation.
// CLType must be callable on the zero value.
type CLMarshaler interface {
	CLType() CLType
	MarshalCL(w *Writer) error
}

// CLUnmarshaler is implemented by pointers to types with their own CL representation
type CLUnmarshaler interface {
	UnmarshalCL(r *Reader) error
}

var (
	bigIntType      = reflect.TypeOf((*big.Int)(nil))
	keyType         = reflect.TypeOf(Key{})
	urefType        = reflect.TypeOf(URef{})
	unitType        = reflect.TypeOf(Unit{})
	marshalerType   = reflect.TypeOf((*CLMarshaler)(nil)).Elem()
	unmarshalerType = reflect.TypeOf((*CLUnmarshaler)(nil)).Elem()
)

func isMarshaler(t reflect.Type) bool {
	return t.Kind() != reflect.Pointer && t.Implements(marshalerType)
}

// CLTypeOf returns the CLType a Go type is encoded as. *big.Int maps to U512.
func CLTypeOf(t reflect.Type) (CLType, error) {
	if t == nil {
		return CLType{}, fmt.Errorf("%w: nil", ErrUnsupportedType)
	}
	if isMarshaler(t) {
		return reflect.Zero(t).Interface().(CLMarshaler).CLType(), nil
	}
	switch t {
	case bigIntType:
		return CLU512, nil
	case keyType:
		return CLKey, nil
	case urefType:
		return CLURef, nil
	case unitType:
		return CLUnit, nil
	}
	switch t.Kind() {
	case reflect.Bool:
		return CLBool, nil
	case reflect.Int32:
		return CLI32, nil
	case reflect.Int64:
		return CLI64, nil
	case reflect.Uint8:
		return CLU8, nil
	case reflect.Uint32:
		return CLU32, nil
	case reflect.Uint64:
		return CLU64, nil
	case reflect.String:
		return CLString, nil
	case reflect.Pointer:
		inner, err := CLTypeOf(t.Elem())
		if err != nil {
			return CLType{}, err
		}
		return OptionOf(inner), nil
	case reflect.Slice:
		inner, err := CLTypeOf(t.Elem())
		if err != nil {
			return CLType{}, err
		}
		return ListOf(inner), nil
	case reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return ByteArrayOf(uint32(t.Len())), nil
		}
	case reflect.Map:
		k, err := CLTypeOf(t.Key())
		if err != nil {
			return CLType{}, err
		}
		v, err := CLTypeOf(t.Elem())
		if err != nil {
			return CLType{}, err
		}
		return MapOf(k, v), nil
	}
	return CLType{}, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
}

// matches reports whether values of Go type t can be decoded from ct
func matches(t reflect.Type, ct CLType) bool {
	if t == bigIntType {
		return ct.IsBigUint()
	}
	exp, err := CLTypeOf(t)
	if err != nil {
		return false
	}
	if isMarshaler(t) || len(exp.Inner) == 0 {
		return exp.Equal(ct)
	}
	if exp.Tag != ct.Tag || len(exp.Inner) != len(ct.Inner) {
		return false
	}
	switch t.Kind() {
	case reflect.Pointer, reflect.Slice:
		return matches(t.Elem(), ct.Inner[0])
	case reflect.Map:
		return matches(t.Key(), ct.Inner[0]) && matches(t.Elem(), ct.Inner[1])
	}
	return exp.Equal(ct)
}

func bigUintWidth(ct CLType) int {
	switch ct.Tag {
	case CLTagU128:
		return 16
	case CLTagU256:
		return 32
	default:
		return maxBigUintBytes
	}
}

func encodeValue(w *Writer, v reflect.Value, ct CLType) error {
	t := v.Type()
	if isMarshaler(t) {
		return v.Interface().(CLMarshaler).MarshalCL(w)
	}
	switch t {
	case bigIntType:
		return w.WriteBigUint(v.Interface().(*big.Int), bigUintWidth(ct))
	case keyType:
		v.Interface().(Key).write(w)
		return nil
	case urefType:
		u := v.Interface().(URef)
		w.WriteRaw(u.Addr[:])
		w.WriteU8(uint8(u.Access))
		return nil
	case unitType:
		return nil
	}
	switch t.Kind() {
	case reflect.Bool:
		w.WriteBool(v.Bool())
	case reflect.Int32:
		w.WriteI32(int32(v.Int()))
	case reflect.Int64:
		w.WriteI64(v.Int())
	case reflect.Uint8:
		w.WriteU8(uint8(v.Uint()))
	case reflect.Uint32:
		w.WriteU32(uint32(v.Uint()))
	case reflect.Uint64:
		w.WriteU64(v.Uint())
	case reflect.String:
		if !utf8.ValidString(v.String()) {
			return fmt.Errorf("%w: string is not valid utf-8", ErrFormatting)
		}
		w.WriteString(v.String())
	case reflect.Pointer:
		if v.IsNil() {
			w.WriteU8(0)
			return nil
		}
		w.WriteU8(1)
		return encodeValue(w, v.Elem(), ct.Inner[0])
	case reflect.Slice:
		w.WriteU32(uint32(v.Len()))
		for i := 0; i < v.Len(); i++ {
			if err := encodeValue(w, v.Index(i), ct.Inner[0]); err != nil {
				return err
			}
		}
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			w.WriteU8(uint8(v.Index(i).Uint()))
		}
	case reflect.Map:
		keys, err := sortedMapKeys(v, ct.Inner[0])
		if err != nil {
			return err
		}
		w.WriteU32(uint32(len(keys)))
		for _, k := range keys {
			if err := encodeValue(w, k, ct.Inner[0]); err != nil {
				return err
			}
			if err := encodeValue(w, v.MapIndex(k), ct.Inner[1]); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedType, t)
	}
	return nil
}

// sortedMapKeys orders map keys the way an ordered map serializes them
func sortedMapKeys(m reflect.Value, kt CLType) ([]reflect.Value, error) {
	keys := m.MapKeys()
	switch m.Type().Key().Kind() {
	case reflect.String:
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	case reflect.Int32, reflect.Int64:
		sort.Slice(keys, func(i, j int) bool { return keys[i].Int() < keys[j].Int() })
	case reflect.Uint8, reflect.Uint32, reflect.Uint64:
		sort.Slice(keys, func(i, j int) bool { return keys[i].Uint() < keys[j].Uint() })
	default:
		encoded := make([][]byte, len(keys))
		for i, k := range keys {
			w := &Writer{}
			if err := encodeValue(w, k, kt); err != nil {
				return nil, err
			}
			encoded[i] = w.Bytes()
		}
		idx := make([]int, len(keys))
		for i := range idx {
			idx[i] = i
		}
		sort.Slice(idx, func(i, j int) bool { return bytes.Compare(encoded[idx[i]], encoded[idx[j]]) < 0 })
		out := make([]reflect.Value, len(keys))
		for i, j := range idx {
			out[i] = keys[j]
		}
		return out, nil
	}
	return keys, nil
}

// zeroWidth reports whether values of ct encode to no bytes, so a length
// prefix cannot be bounded by the remaining input
func zeroWidth(ct CLType) bool {
	switch ct.Tag {
	case CLTagUnit:
		return true
	case CLTagByteArray:
		return ct.Size == 0
	}
	return false
}

func decodeValue(r *Reader, t reflect.Type, ct CLType) (reflect.Value, error) {
	if isMarshaler(t) && reflect.PointerTo(t).Implements(unmarshalerType) {
		p := reflect.New(t)
		if err := p.Interface().(CLUnmarshaler).UnmarshalCL(r); err != nil {
			return reflect.Value{}, err
		}
		return p.Elem(), nil
	}
	switch t {
	case bigIntType:
		b, err := r.ReadBigUint(bigUintWidth(ct))
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(b), nil
	case keyType:
		k, err := readKey(r)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(k), nil
	case urefType:
		addr, err := r.ReadRaw(AddrLength)
		if err != nil {
			return reflect.Value{}, err
		}
		access, err := r.ReadU8()
		if err != nil {
			return reflect.Value{}, err
		}
		if AccessRights(access) > AccessReadAddWrite {
			return reflect.Value{}, fmt.Errorf("%w: invalid access rights %d", ErrFormatting, access)
		}
		var u URef
		copy(u.Addr[:], addr)
		u.Access = AccessRights(access)
		return reflect.ValueOf(u), nil
	case unitType:
		return reflect.Zero(t), nil
	}

	out := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Bool:
		b, err := r.ReadBool()
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetBool(b)
	case reflect.Int32:
		n, err := r.ReadI32()
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetInt(int64(n))
	case reflect.Int64:
		n, err := r.ReadI64()
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetInt(n)
	case reflect.Uint8:
		n, err := r.ReadU8()
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetUint(uint64(n))
	case reflect.Uint32:
		n, err := r.ReadU32()
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetUint(uint64(n))
	case reflect.Uint64:
		n, err := r.ReadU64()
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetUint(n)
	case reflect.String:
		s, err := r.ReadString()
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetString(s)
	case reflect.Pointer:
		flag, err := r.ReadU8()
		if err != nil {
			return reflect.Value{}, err
		}
		switch flag {
		case 0:
		case 1:
			elem, err := decodeValue(r, t.Elem(), ct.Inner[0])
			if err != nil {
				return reflect.Value{}, err
			}
			p := reflect.New(t.Elem())
			p.Elem().Set(elem)
			out.Set(p)
		default:
			return reflect.Value{}, fmt.Errorf("%w: invalid option tag %d", ErrFormatting, flag)
		}
	case reflect.Slice:
		n, err := r.ReadU32()
		if err != nil {
			return reflect.Value{}, err
		}
		if !zeroWidth(ct.Inner[0]) && int(n) > r.Remaining() {
			return reflect.Value{}, ErrEarlyEndOfStream
		}
		s := reflect.MakeSlice(t, int(n), int(n))
		for i := 0; i < int(n); i++ {
			elem, err := decodeValue(r, t.Elem(), ct.Inner[0])
			if err != nil {
				return reflect.Value{}, err
			}
			s.Index(i).Set(elem)
		}
		out.Set(s)
	case reflect.Array:
		raw, err := r.ReadRaw(t.Len())
		if err != nil {
			return reflect.Value{}, err
		}
		reflect.Copy(out, reflect.ValueOf(raw))
	case reflect.Map:
		n, err := r.ReadU32()
		if err != nil {
			return reflect.Value{}, err
		}
		if !(zeroWidth(ct.Inner[0]) && zeroWidth(ct.Inner[1])) && int(n) > r.Remaining() {
			return reflect.Value{}, ErrEarlyEndOfStream
		}
		m := reflect.MakeMapWithSize(t, min(int(n), r.Remaining()))
		for i := 0; i < int(n); i++ {
			k, err := decodeValue(r, t.Key(), ct.Inner[0])
			if err != nil {
				return reflect.Value{}, err
			}
			v, err := decodeValue(r, t.Elem(), ct.Inner[1])
			if err != nil {
				return reflect.Value{}, err
			}
			m.SetMapIndex(k, v)
		}
		out.Set(m)
	default:
		return reflect.Value{}, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
	}
	return out, nil
}
