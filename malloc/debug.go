//go:build debug

package malloc

// initblock fill a chunk with 0xff, so that applications reading
// memory before writing it are caught early.
func initblock(block []byte) {
	for len(block) > 0 {
		n := copy(block, poolblkinit)
		block = block[n:]
	}
}
