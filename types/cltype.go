package types

import (
	"fmt"
	"strings"
)

// CLTypeTag is the leading byte of a serialized CLType
type CLTypeTag uint8

const (
	CLTagBool      CLTypeTag = 0
	CLTagI32       CLTypeTag = 1
	CLTagI64       CLTypeTag = 2
	CLTagU8        CLTypeTag = 3
	CLTagU32       CLTypeTag = 4
	CLTagU64       CLTypeTag = 5
	CLTagU128      CLTypeTag = 6
	CLTagU256      CLTypeTag = 7
	CLTagU512      CLTypeTag = 8
	CLTagUnit      CLTypeTag = 9
	CLTagString    CLTypeTag = 10
	CLTagKey       CLTypeTag = 11
	CLTagURef      CLTypeTag = 12
	CLTagOption    CLTypeTag = 13
	CLTagList      CLTypeTag = 14
	CLTagByteArray CLTypeTag = 15
	CLTagMap       CLTypeTag = 17
	CLTagAny       CLTypeTag = 21
	CLTagPublicKey CLTypeTag = 22
)

var clTagNames = map[CLTypeTag]string{
	CLTagBool:      "Bool",
	CLTagI32:       "I32",
	CLTagI64:       "I64",
	CLTagU8:        "U8",
	CLTagU32:       "U32",
	CLTagU64:       "U64",
	CLTagU128:      "U128",
	CLTagU256:      "U256",
	CLTagU512:      "U512",
	CLTagUnit:      "Unit",
	CLTagString:    "String",
	CLTagKey:       "Key",
	CLTagURef:      "URef",
	CLTagOption:    "Option",
	CLTagList:      "List",
	CLTagByteArray: "ByteArray",
	CLTagMap:       "Map",
	CLTagAny:       "Any",
	CLTagPublicKey: "PublicKey",
}

// CLType describes the type of a CLValue
type CLType struct {
	Tag   CLTypeTag
	Inner []CLType // element type for Option and List, key and value for Map
	Size  uint32   // ByteArray length
}

var (
	CLBool      = CLType{Tag: CLTagBool}
	CLI32       = CLType{Tag: CLTagI32}
	CLI64       = CLType{Tag: CLTagI64}
	CLU8        = CLType{Tag: CLTagU8}
	CLU32       = CLType{Tag: CLTagU32}
	CLU64       = CLType{Tag: CLTagU64}
	CLU128      = CLType{Tag: CLTagU128}
	CLU256      = CLType{Tag: CLTagU256}
	CLU512      = CLType{Tag: CLTagU512}
	CLUnit      = CLType{Tag: CLTagUnit}
	CLString    = CLType{Tag: CLTagString}
	CLKey       = CLType{Tag: CLTagKey}
	CLURef      = CLType{Tag: CLTagURef}
	CLAny       = CLType{Tag: CLTagAny}
	CLPublicKey = CLType{Tag: CLTagPublicKey}
)

func OptionOf(t CLType) CLType { return CLType{Tag: CLTagOption, Inner: []CLType{t}} }
func ListOf(t CLType) CLType   { return CLType{Tag: CLTagList, Inner: []CLType{t}} }
func MapOf(k, v CLType) CLType { return CLType{Tag: CLTagMap, Inner: []CLType{k, v}} }
func ByteArrayOf(n uint32) CLType {
	return CLType{Tag: CLTagByteArray, Size: n}
}

// IsBigUint reports whether t is one of the wide unsigned integer types
func (t CLType) IsBigUint() bool {
	return t.Tag == CLTagU128 || t.Tag == CLTagU256 || t.Tag == CLTagU512
}

// Equal compares two types structurally
func (t CLType) Equal(o CLType) bool {
	if t.Tag != o.Tag || t.Size != o.Size || len(t.Inner) != len(o.Inner) {
		return false
	}
	for i := range t.Inner {
		if !t.Inner[i].Equal(o.Inner[i]) {
			return false
		}
	}
	return true
}

func (t CLType) String() string {
	name, ok := clTagNames[t.Tag]
	if !ok {
		return fmt.Sprintf("Unknown(%d)", t.Tag)
	}
	switch t.Tag {
	case CLTagByteArray:
		return fmt.Sprintf("%s(%d)", name, t.Size)
	case CLTagOption, CLTagList, CLTagMap:
		inner := make([]string, len(t.Inner))
		for i, it := range t.Inner {
			inner[i] = it.String()
		}
		return name + "<" + strings.Join(inner, ", ") + ">"
	default:
		return name
	}
}

// Bytes returns the serialized type descriptor
func (t CLType) Bytes() []byte {
	w := &Writer{}
	t.write(w)
	return w.Bytes()
}

func (t CLType) write(w *Writer) {
	w.WriteU8(uint8(t.Tag))
	switch t.Tag {
	case CLTagByteArray:
		w.WriteU32(t.Size)
	case CLTagOption, CLTagList, CLTagMap:
		for _, it := range t.Inner {
			it.write(w)
		}
	}
}

// maxCLTypeDepth bounds the nesting of Option, List and Map descriptors
const maxCLTypeDepth = 50

func readCLType(r *Reader, depth int) (CLType, error) {
	if depth > maxCLTypeDepth {
		return CLType{}, fmt.Errorf("%w: cl type nested deeper than %d", ErrFormatting, maxCLTypeDepth)
	}
	tag, err := r.ReadU8()
	if err != nil {
		return CLType{}, err
	}
	t := CLType{Tag: CLTypeTag(tag)}
	if _, ok := clTagNames[t.Tag]; !ok {
		return CLType{}, fmt.Errorf("%w: unknown cl type tag %d", ErrFormatting, tag)
	}
	inner := 0
	switch t.Tag {
	case CLTagByteArray:
		if t.Size, err = r.ReadU32(); err != nil {
			return CLType{}, err
		}
	case CLTagOption, CLTagList:
		inner = 1
	case CLTagMap:
		inner = 2
	}
	for i := 0; i < inner; i++ {
		it, err := readCLType(r, depth+1)
		if err != nil {
			return CLType{}, err
		}
		t.Inner = append(t.Inner, it)
	}
	return t, nil
}

// CLTypeFromBytes decodes a serialized type descriptor
func CLTypeFromBytes(b []byte) (CLType, error) {
	r := NewReader(b)
	t, err := readCLType(r, 0)
	if err != nil {
		return CLType{}, err
	}
	return t, r.Finish()
}
