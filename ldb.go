package ldb

import (
	"errors"
	"fmt"
	"path/filepath"
)

var magic = []byte{137, 76, 68, 66, 13, 10, 26, 10}

const (
	// KeyLen is the primary key length in bytes. The first KeyLen bytes of
	// every key address a node chain; the remaining bytes form the subkey.
	KeyLen = 4

	// MaxRecLen is the maximum permitted record length. Records within 32
	// bytes of this limit are silently dropped during decoding.
	MaxRecLen = 1 << 16
)

const (
	sectorNoCompression     = 0
	sectorSnappyCompression = 1

	nodeHeaderLen = 8
	footerLen     = 17

	// scratch size for disk-backed node reads; the slack covers the
	// group framing around a maximum-length record
	maxNodeLen = MaxRecLen + 1024

	// largest variable-length record whose dataset group still fits a
	// 16-bit size prefix
	maxVarRecLen = 0xffff - 2
)

var (
	errClosed         = errors.New("ldb: is closed")
	errBadMagic       = errors.New("ldb: bad magic byte sequence")
	errBadCompression = errors.New("ldb: bad compression codec")
	errBadFooter      = errors.New("ldb: bad sector footer")
	errBadIndex       = errors.New("ldb: bad suffix index")
)

// Compression is the compression codec applied to sector node areas.
type Compression byte

func (c Compression) isValid() bool {
	return c >= SnappyCompression && c <= unknownCompression
}

// Supported compression codecs
const (
	SnappyCompression Compression = iota
	NoCompression
	unknownCompression
)

// --------------------------------------------------------------------

// Table describes one sector-sharded table. Tables are plain read-only
// configuration values and can be copied freely.
type Table struct {
	// Dir is the directory holding the table's sector files.
	Dir string

	// KeyLen is the total key length in bytes, at least 4. Bytes beyond
	// the primary key select a dataset within a node.
	KeyLen int

	// RecLen is the fixed record length in bytes. 0 means records are
	// variable-length and nodes carry dataset groups.
	RecLen int
}

func (t Table) subkeyLen() int { return t.KeyLen - KeyLen }

// SectorPath returns the path of the sector file holding every key with
// the leading byte k0.
func (t Table) SectorPath(k0 byte) string {
	return filepath.Join(t.Dir, fmt.Sprintf("%02x.ldb", k0))
}

// suffix24 packs the three trailing primary-key bytes into one index key.
func suffix24(key []byte) uint32 {
	return uint32(key[1])<<16 | uint32(key[2])<<8 | uint32(key[3])
}
