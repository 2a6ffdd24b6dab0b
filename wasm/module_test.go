package wasm

// Minimal binary module assembler used to build test fixtures without a
// toolchain.

const (
	valI32 = 0x7f

	opUnreachable = 0x00
	opCall        = 0x10
	opDrop        = 0x1a
	opI32Const    = 0x41
	opEnd         = 0x0b
)

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}

func sleb(v int32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func wasmName(s string) []byte {
	return append(uleb(uint32(len(s))), s...)
}

func wasmVec(items [][]byte) []byte {
	out := uleb(uint32(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func wasmSection(id byte, items [][]byte) []byte {
	if len(items) == 0 {
		return nil
	}
	content := wasmVec(items)
	out := append([]byte{id}, uleb(uint32(len(content)))...)
	return append(out, content...)
}

func funcType(params, results []byte) []byte {
	out := []byte{0x60}
	out = append(out, uleb(uint32(len(params)))...)
	out = append(out, params...)
	out = append(out, uleb(uint32(len(results)))...)
	return append(out, results...)
}

func i32Const(v int32) []byte {
	return append([]byte{opI32Const}, sleb(v)...)
}

func call(idx uint32) []byte {
	return append([]byte{opCall}, uleb(idx)...)
}

// testModule describes a module whose imports are all functions from env
type testModule struct {
	types   [][]byte
	imports []testImport
	funcs   []testFunc
	memory  bool
	data    []testData
}

type testImport struct {
	name    string
	typeIdx uint32
}

type testFunc struct {
	export  string
	typeIdx uint32
	body    []byte
}

type testData struct {
	offset int32
	bytes  []byte
}

func (m testModule) bytes() []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	out = append(out, wasmSection(1, m.types)...)

	var imports [][]byte
	for _, imp := range m.imports {
		entry := append(wasmName("env"), wasmName(imp.name)...)
		entry = append(entry, 0x00)
		imports = append(imports, append(entry, uleb(imp.typeIdx)...))
	}
	out = append(out, wasmSection(2, imports)...)

	var funcs, exports, codes [][]byte
	base := uint32(len(m.imports))
	for i, f := range m.funcs {
		funcs = append(funcs, uleb(f.typeIdx))
		if f.export != "" {
			entry := append(wasmName(f.export), 0x00)
			exports = append(exports, append(entry, uleb(base+uint32(i))...))
		}
		body := append([]byte{0x00}, f.body...)
		body = append(body, opEnd)
		codes = append(codes, append(uleb(uint32(len(body))), body...))
	}
	if m.memory {
		exports = append(exports, append(wasmName("memory"), 0x02, 0x00))
	}
	out = append(out, wasmSection(3, funcs)...)
	if m.memory {
		out = append(out, wasmSection(5, [][]byte{{0x00, 0x01}})...)
	}
	out = append(out, wasmSection(7, exports)...)
	out = append(out, wasmSection(10, codes)...)

	var data [][]byte
	for _, d := range m.data {
		entry := append([]byte{0x00}, i32Const(d.offset)...)
		entry = append(entry, opEnd)
		entry = append(entry, uleb(uint32(len(d.bytes)))...)
		data = append(data, append(entry, d.bytes...))
	}
	return append(out, wasmSection(11, data)...)
}

// revertModule exports call, which reverts with status
func revertModule(status uint32) []byte {
	return testModule{
		types:   [][]byte{funcType([]byte{valI32}, nil), funcType(nil, nil)},
		imports: []testImport{{name: "casper_revert", typeIdx: 0}},
		funcs: []testFunc{{
			export:  "call",
			typeIdx: 1,
			body:    append(i32Const(int32(status)), call(0)...),
		}},
	}.bytes()
}

// emptyModule exports a call that does nothing
func emptyModule() []byte {
	return testModule{
		types: [][]byte{funcType(nil, nil)},
		funcs: []testFunc{{export: "call", typeIdx: 0}},
	}.bytes()
}

// trapModule exports a call that hits unreachable
func trapModule() []byte {
	return testModule{
		types: [][]byte{funcType(nil, nil)},
		funcs: []testFunc{{export: "call", typeIdx: 0, body: []byte{opUnreachable}}},
	}.bytes()
}

// putKeyModule stores key under name, then reverts with the status the host
// returned so the test can observe it.
func putKeyModule(name string, key []byte) []byte {
	i32x4 := []byte{valI32, valI32, valI32, valI32}
	var body []byte
	body = append(body, i32Const(0)...)
	body = append(body, i32Const(int32(len(name)))...)
	body = append(body, i32Const(int32(len(name)))...)
	body = append(body, i32Const(int32(len(key)))...)
	body = append(body, call(0)...)
	body = append(body, call(1)...)
	return testModule{
		types: [][]byte{
			funcType(i32x4, []byte{valI32}),
			funcType([]byte{valI32}, nil),
			funcType(nil, nil),
		},
		imports: []testImport{
			{name: "casper_put_key", typeIdx: 0},
			{name: "casper_revert", typeIdx: 1},
		},
		funcs:  []testFunc{{export: "call", typeIdx: 2, body: body}},
		memory: true,
		data:   []testData{{offset: 0, bytes: append([]byte(name), key...)}},
	}.bytes()
}

// newDictionaryModule creates a dictionary named name and drops the status
func newDictionaryModule(name string) []byte {
	var body []byte
	body = append(body, i32Const(0)...)
	body = append(body, i32Const(int32(len(name)))...)
	body = append(body, call(0)...)
	body = append(body, opDrop)
	return testModule{
		types: [][]byte{
			funcType([]byte{valI32, valI32}, []byte{valI32}),
			funcType(nil, nil),
		},
		imports: []testImport{{name: "casper_new_dictionary", typeIdx: 0}},
		funcs:   []testFunc{{export: "call", typeIdx: 1, body: body}},
		memory:  true,
		data:    []testData{{offset: 0, bytes: []byte(name)}},
	}.bytes()
}
