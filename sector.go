package ldb

import (
	"bytes"
	"encoding/binary"
	"os"
	"sort"
	"sync"

	"github.com/golang/snappy"
)

// Sector is an in-memory image of all node data sharing one leading
// primary-key byte. It is loaded once, scanned exhaustively and released;
// the recordset decoder only ever borrows it as a read-only buffer.
type Sector struct {
	k0    byte
	area  []byte    // magic + uncompressed node area
	index []nodeRef // populated key suffixes, ascending
}

// LoadSector materializes the sector image for the leading key byte k0.
// It returns (nil, nil) when the shard holds no data.
func (t Table) LoadSector(k0 byte) (*Sector, error) {
	f, err := os.Open(t.SectorPath(k0))
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	defer f.Close()

	indexOff, codec, index, err := readSectorMeta(f)
	if err != nil {
		return nil, err
	}

	area, err := loadArea(f, indexOff, codec)
	if err != nil {
		return nil, err
	}

	return &Sector{k0: k0, area: area, index: index}, nil
}

// NumKeys returns the number of populated primary keys in the sector.
func (s *Sector) NumKeys() int { return len(s.index) }

// Contains reports whether any data may exist under the primary key.
func (s *Sector) Contains(key []byte) bool {
	return findFirst(s.index, suffix24(key)) != 0
}

// Release returns the sector image to the buffer pool. The sector must
// not be used after this method is called.
func (s *Sector) Release() {
	releaseBuffer(s.area)
	s.area, s.index = nil, nil
}

// first resolves the chain head offset for a key, 0 when absent.
func (s *Sector) first(key []byte) uint64 {
	return findFirst(s.index, suffix24(key))
}

func findFirst(index []nodeRef, sfx uint32) uint64 {
	i := sort.Search(len(index), func(i int) bool {
		return index[i].Suffix >= sfx
	})
	if i < len(index) && index[i].Suffix == sfx {
		return index[i].Offset
	}
	return 0
}

// --------------------------------------------------------------------

// openNodes opens the disk-backed node source for a key. It returns nil
// when the sector file is missing or unreadable; callers treat that as an
// empty chain.
func (t Table) openNodes(key []byte) nodeSource {
	f, err := os.Open(t.SectorPath(key[0]))
	if err != nil {
		return nil
	}

	indexOff, codec, index, err := readSectorMeta(f)
	if err != nil {
		f.Close()
		return nil
	}
	start := findFirst(index, suffix24(key))

	if codec == sectorNoCompression {
		return &fileNodes{f: f, scratch: fetchBuffer(maxNodeLen), start: start}
	}

	// compressed node areas are materialized as a whole
	area, err := loadArea(f, indexOff, codec)
	f.Close()
	if err != nil {
		return nil
	}
	return &memNodes{area: area, start: start, owned: true}
}

// readSectorMeta parses the sector footer and suffix index.
func readSectorMeta(f *os.File) (indexOff int64, codec byte, index []nodeRef, err error) {
	fi, err := f.Stat()
	if err != nil {
		return 0, 0, nil, err
	}
	size := fi.Size()
	if size < int64(len(magic))+footerLen {
		return 0, 0, nil, errBadFooter
	}

	// read and parse the footer
	footerOff := size - footerLen
	tmp := make([]byte, footerLen)
	if _, err := f.ReadAt(tmp, footerOff); err != nil {
		return 0, 0, nil, err
	}
	if !bytes.Equal(tmp[9:], magic) {
		return 0, 0, nil, errBadMagic
	}
	indexOff = int64(binary.BigEndian.Uint64(tmp[:8]))
	codec = tmp[8]
	if indexOff < int64(len(magic)) || indexOff > footerOff {
		return 0, 0, nil, errBadFooter
	}

	// read the suffix index
	buf := fetchBuffer(int(footerOff - indexOff))
	defer releaseBuffer(buf)
	if _, err := f.ReadAt(buf, indexOff); err != nil {
		return 0, 0, nil, err
	}

	var ref nodeRef
	for pos := 0; pos < len(buf); {
		u1, n := binary.Uvarint(buf[pos:])
		if n <= 0 {
			return 0, 0, nil, errBadIndex
		}
		pos += n

		u2, n := binary.Uvarint(buf[pos:])
		if n <= 0 {
			return 0, 0, nil, errBadIndex
		}
		pos += n

		ref.Suffix += uint32(u1)
		ref.Offset += u2
		index = append(index, ref)
	}
	return indexOff, codec, index, nil
}

// loadArea reads the node area into a pooled buffer, decoding it when
// compressed. The returned buffer retains the leading magic so that node
// offsets stay file-absolute.
func loadArea(f *os.File, indexOff int64, codec byte) ([]byte, error) {
	raw := fetchBuffer(int(indexOff))
	if _, err := f.ReadAt(raw, 0); err != nil {
		releaseBuffer(raw)
		return nil, err
	}
	if !bytes.Equal(raw[:len(magic)], magic) {
		releaseBuffer(raw)
		return nil, errBadMagic
	}

	switch codec {
	case sectorNoCompression:
		return raw, nil
	case sectorSnappyCompression:
		defer releaseBuffer(raw)

		sz, err := snappy.DecodedLen(raw[len(magic):])
		if err != nil {
			return nil, err
		}

		area := fetchBuffer(len(magic) + sz)
		copy(area, magic)
		if _, err := snappy.Decode(area[len(magic):], raw[len(magic):]); err != nil {
			releaseBuffer(area)
			return nil, err
		}
		return area, nil
	default:
		releaseBuffer(raw)
		return nil, errBadCompression
	}
}

// --------------------------------------------------------------------

var bufPool sync.Pool

func fetchBuffer(sz int) []byte {
	if v := bufPool.Get(); v != nil {
		if p := v.([]byte); sz <= cap(p) {
			return p[:sz]
		}
	}
	return make([]byte, sz)
}

func releaseBuffer(p []byte) {
	if cap(p) != 0 {
		bufPool.Put(p[:cap(p)])
	}
}
