package types

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"reflect"
)

// CLTypeMismatch is returned when a value is read as a type it was not stored as
type CLTypeMismatch struct {
	Expected CLType
	Found    CLType
}

func (e *CLTypeMismatch) Error() string {
	return fmt.Sprintf("cl type mismatch: expected %s, found %s", e.Expected, e.Found)
}

// CLValue is a serialized value together with its type
type CLValue struct {
	Type  CLType
	Bytes []byte
}

// NewCLValue encodes v, inferring its CLType from the Go type
func NewCLValue(v any) (CLValue, error) {
	if v == nil {
		return CLValue{}, fmt.Errorf("%w: nil", ErrUnsupportedType)
	}
	ct, err := CLTypeOf(reflect.TypeOf(v))
	if err != nil {
		return CLValue{}, err
	}
	return NewCLValueWithType(v, ct)
}

// NewCLValueWithType encodes v as ct. It is needed for *big.Int values that
// should be stored as U128 or U256 rather than U512.
func NewCLValueWithType(v any, ct CLType) (CLValue, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return CLValue{}, fmt.Errorf("%w: nil", ErrUnsupportedType)
	}
	if !matches(rv.Type(), ct) {
		exp, _ := CLTypeOf(rv.Type())
		return CLValue{}, &CLTypeMismatch{Expected: ct, Found: exp}
	}
	w := &Writer{}
	if err := encodeValue(w, rv, ct); err != nil {
		return CLValue{}, err
	}
	return CLValue{Type: ct, Bytes: w.Bytes()}, nil
}

// MustCLValue is like NewCLValue but panics on error. Intended for literals.
func MustCLValue(v any) CLValue {
	cv, err := NewCLValue(v)
	if err != nil {
		panic(err)
	}
	return cv
}

func U128Value(v *big.Int) (CLValue, error) { return NewCLValueWithType(v, CLU128) }
func U256Value(v *big.Int) (CLValue, error) { return NewCLValueWithType(v, CLU256) }
func U512Value(v *big.Int) (CLValue, error) { return NewCLValueWithType(v, CLU512) }

// UnitValue is the CLValue of type Unit
func UnitValue() CLValue {
	return CLValue{Type: CLUnit, Bytes: []byte{}}
}

// IntoT decodes v into T. It fails if T's CLType differs from the stored type,
// if the bytes are malformed, or if bytes remain after decoding.
func IntoT[T any](v CLValue) (T, error) {
	var zero T
	t := reflect.TypeOf((*T)(nil)).Elem()
	if !matches(t, v.Type) {
		exp, err := CLTypeOf(t)
		if err != nil {
			return zero, err
		}
		return zero, &CLTypeMismatch{Expected: exp, Found: v.Type}
	}
	r := NewReader(v.Bytes)
	out, err := decodeValue(r, t, v.Type)
	if err != nil {
		return zero, fmt.Errorf("failed to decode %s: %w", v.Type, err)
	}
	if err := r.Finish(); err != nil {
		return zero, fmt.Errorf("failed to decode %s: %w", v.Type, err)
	}
	return out.Interface().(T), nil
}

// IsUnit reports whether v holds the Unit value
func (v CLValue) IsUnit() bool {
	return v.Type.Tag == CLTagUnit && len(v.Bytes) == 0
}

// Clone returns a deep copy of v
func (v CLValue) Clone() CLValue {
	out := CLValue{Type: cloneCLType(v.Type), Bytes: make([]byte, len(v.Bytes))}
	copy(out.Bytes, v.Bytes)
	return out
}

func cloneCLType(t CLType) CLType {
	if len(t.Inner) == 0 {
		return t
	}
	inner := make([]CLType, len(t.Inner))
	for i, it := range t.Inner {
		inner[i] = cloneCLType(it)
	}
	t.Inner = inner
	return t
}

// ToBytes serializes v as length-prefixed value bytes followed by the type
func (v CLValue) ToBytes() []byte {
	w := &Writer{}
	v.write(w)
	return w.Bytes()
}

func (v CLValue) write(w *Writer) {
	w.WriteBytes(v.Bytes)
	v.Type.write(w)
}

func readCLValue(r *Reader) (CLValue, error) {
	b, err := r.ReadBytes()
	if err != nil {
		return CLValue{}, err
	}
	t, err := readCLType(r, 0)
	if err != nil {
		return CLValue{}, err
	}
	return CLValue{Type: t, Bytes: b}, nil
}

// CLValueFromBytes decodes the output of CLValue.ToBytes
func CLValueFromBytes(b []byte) (CLValue, error) {
	r := NewReader(b)
	v, err := readCLValue(r)
	if err != nil {
		return CLValue{}, err
	}
	return v, r.Finish()
}

func (v CLValue) GoString() string {
	return fmt.Sprintf("CLValue { cl_type: %s, bytes: %s }", v.Type, hex.EncodeToString(v.Bytes))
}
