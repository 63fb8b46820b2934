package ldb

import (
	"encoding/binary"
	"os"
)

type nodeRef struct {
	Suffix uint32 // trailing primary-key bytes, packed
	Offset uint64 // absolute offset of the first node in the chain
}

// u16 reads a big-endian 16-bit length prefix, reporting whether it fits
// the buffer.
func u16(b []byte, off int) (int, bool) {
	if off < 0 || off+2 > len(b) {
		return 0, false
	}
	return int(binary.BigEndian.Uint16(b[off:])), true
}

// validateNode checks that a variable-length node's dataset group length
// fields tile the content exactly. Content that overruns or underruns its
// declared size is rejected as a whole.
func validateNode(content []byte, subkeyLen int) bool {
	ptr := 0
	for ptr < len(content) {
		size, ok := u16(content, ptr+subkeyLen)
		if !ok {
			return false
		}
		ptr += subkeyLen + 2 + size
	}
	return ptr == len(content)
}

// --------------------------------------------------------------------

// nodeSource yields the chained nodes stored under one primary key. The
// two implementations differ in buffer ownership: memNodes serves slices
// of a materialized node area, fileNodes owns a file handle and a pooled
// scratch buffer. Cursors are absolute node offsets; 0 ends the chain.
type nodeSource interface {
	first() uint64
	readNode(cursor uint64) (content []byte, next uint64)
	release()
}

type memNodes struct {
	area  []byte
	start uint64
	owned bool // return the area to the buffer pool on release
}

func (m *memNodes) first() uint64 { return m.start }

func (m *memNodes) readNode(cursor uint64) ([]byte, uint64) {
	if cursor+nodeHeaderLen > uint64(len(m.area)) {
		return nil, 0
	}
	next := uint64(binary.BigEndian.Uint32(m.area[cursor:]))
	size := uint64(binary.BigEndian.Uint32(m.area[cursor+4:]))

	end := cursor + nodeHeaderLen + size
	if end > uint64(len(m.area)) {
		return nil, 0
	}
	return m.area[cursor+nodeHeaderLen : end], next
}

func (m *memNodes) release() {
	if m.owned {
		releaseBuffer(m.area)
	}
	m.area = nil
}

type fileNodes struct {
	f       *os.File
	scratch []byte
	start   uint64
}

func (n *fileNodes) first() uint64 { return n.start }

func (n *fileNodes) readNode(cursor uint64) ([]byte, uint64) {
	hdr := n.scratch[:nodeHeaderLen]
	if _, err := n.f.ReadAt(hdr, int64(cursor)); err != nil {
		return nil, 0
	}
	next := uint64(binary.BigEndian.Uint32(hdr))
	size := int(binary.BigEndian.Uint32(hdr[4:]))

	if size > len(n.scratch) {
		// content exceeds the scratch buffer, skip the node
		return nil, next
	}
	content := n.scratch[:size]
	if _, err := n.f.ReadAt(content, int64(cursor+nodeHeaderLen)); err != nil {
		return nil, 0
	}
	return content, next
}

func (n *fileNodes) release() {
	n.f.Close()
	releaseBuffer(n.scratch)
	n.scratch = nil
}
