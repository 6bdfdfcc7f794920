package heap

const memoryExport = "memory"

const (
	sectionMemory = 0x05
	sectionExport = 0x07

	exportKindMemory = 0x02
	limitsMinOnly    = 0x00
)

// memoryModule encodes a wasm module that defines one memory of the given
// initial size and exports it.
func memoryModule(pages uint32) []byte {
	var wasm []byte

	// Magic and version
	wasm = append(wasm, 0x00, 0x61, 0x73, 0x6d)
	wasm = append(wasm, 0x01, 0x00, 0x00, 0x00)

	var mem []byte
	mem = append(mem, 0x01, limitsMinOnly)
	mem = append(mem, encodeULEB128(pages)...)
	wasm = appendSection(wasm, sectionMemory, mem)

	var exp []byte
	exp = append(exp, 0x01)
	exp = append(exp, encodeULEB128(uint32(len(memoryExport)))...)
	exp = append(exp, memoryExport...)
	exp = append(exp, exportKindMemory, 0x00)
	wasm = appendSection(wasm, sectionExport, exp)

	return wasm
}

func appendSection(wasm []byte, id byte, body []byte) []byte {
	wasm = append(wasm, id)
	wasm = append(wasm, encodeULEB128(uint32(len(body)))...)
	return append(wasm, body...)
}

func encodeULEB128(v uint32) []byte {
	var result []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		result = append(result, b)
		if v == 0 {
			break
		}
	}
	return result
}
