package ldb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/golang/snappy"
)

// WriterOptions define writer specific options.
type WriterOptions struct {
	// KeyLen is the total key length in bytes, at least 4.
	// Default: 4.
	KeyLen int

	// RecLen is the fixed record length in bytes, 0 for variable-length
	// records.
	// Default: 0.
	RecLen int

	// NodeSize is the content size in bytes at which a key's node chain
	// is split.
	// Default: 4KiB.
	NodeSize int

	// The compression codec to use for sector node areas.
	// Default: SnappyCompression.
	Compression Compression
}

func (o *WriterOptions) norm() *WriterOptions {
	var oo WriterOptions
	if o != nil {
		oo = *o
	}

	if oo.KeyLen < KeyLen {
		oo.KeyLen = KeyLen
	}
	if oo.RecLen < 0 {
		oo.RecLen = 0
	}
	if oo.NodeSize < 1 {
		oo.NodeSize = 1 << 12
	}
	if oo.NodeSize > MaxRecLen {
		oo.NodeSize = MaxRecLen
	}
	if !oo.Compression.isValid() {
		oo.Compression = SnappyCompression
	}

	return &oo
}

// Writer builds the sector files of a table. Keys must be appended in
// ascending byte order; the writer rolls over to a new sector file
// whenever the leading key byte changes.
type Writer struct {
	dir string
	o   *WriterOptions

	f     *os.File  // current sector file
	area  []byte    // uncompressed node area of the current sector, magic excluded
	index []nodeRef // chain heads of the current sector

	node  []byte // content of the node being built
	first uint64 // chain head offset of the current primary key
	goff  int    // size-prefix offset of the open dataset group, -1 = none

	prev []byte // last appended key
	snp  []byte // snappy buffer
	tmp  []byte // scratch buffer
}

// NewWriter creates the table directory and returns a Writer.
func NewWriter(dir string, o *WriterOptions) (*Writer, error) {
	oo := o.norm()
	if oo.RecLen > MaxRecLen {
		return nil, fmt.Errorf("ldb: fixed record length %d exceeds %d", oo.RecLen, MaxRecLen)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Writer{
		dir:  dir,
		o:    oo,
		goff: -1,
		tmp:  make([]byte, 2*binary.MaxVarintLen64),
	}, nil
}

// Table returns the descriptor of the table being written.
func (w *Writer) Table() Table {
	return Table{Dir: w.dir, KeyLen: w.o.KeyLen, RecLen: w.o.RecLen}
}

// Append stores a record under key.
func (w *Writer) Append(key, record []byte) error {
	if w.tmp == nil {
		return errClosed
	}
	if len(key) != w.o.KeyLen {
		return fmt.Errorf("ldb: key length %d, table expects %d", len(key), w.o.KeyLen)
	}
	if w.o.RecLen != 0 && len(record) != w.o.RecLen {
		return fmt.Errorf("ldb: record length %d, table expects %d", len(record), w.o.RecLen)
	}
	if w.o.RecLen == 0 && len(record) > maxVarRecLen {
		return fmt.Errorf("ldb: record length %d exceeds %d", len(record), maxVarRecLen)
	}
	if w.prev != nil && bytes.Compare(key, w.prev) < 0 {
		return fmt.Errorf("ldb: attempted an out-of-order append, %x must be >= %x", key, w.prev)
	}

	samePrimary := w.prev != nil && bytes.Equal(key[:KeyLen], w.prev[:KeyLen])
	sameSubkey := samePrimary && bytes.Equal(key[KeyLen:], w.prev[KeyLen:])

	if !samePrimary {
		if w.prev != nil {
			w.finishKey()
		}
		if w.f == nil || key[0] != w.prev[0] {
			if err := w.rollSector(key[0]); err != nil {
				return err
			}
		}
		w.first = uint64(len(magic) + len(w.area))
	}

	if w.o.RecLen != 0 {
		if len(w.node) > 0 && len(w.node)+len(record) > w.o.NodeSize {
			w.flushNode(true)
		}
		w.node = append(w.node, record...)
	} else {
		w.appendVar(key[KeyLen:], record, sameSubkey)
	}

	w.prev = append(w.prev[:0], key...)
	return nil
}

// Close flushes the pending node chain, index and footer and closes the
// current sector file.
func (w *Writer) Close() error {
	if w.tmp == nil {
		return errClosed
	}
	if w.prev != nil && w.f != nil {
		w.finishKey()
	}
	err := w.closeSector()
	w.tmp = nil
	return err
}

// appendVar encodes one variable-length record into the node being built,
// opening and closing dataset groups as needed.
func (w *Writer) appendVar(subkey, record []byte, sameSubkey bool) {
	need := 2 + len(record)

	// close the open dataset group when the subkey changes or the group
	// would outgrow its 16-bit size prefix
	if w.goff >= 0 && (!sameSubkey || w.groupSize()+need > 0xffff) {
		w.closeGroup()
	}

	// split the chain when the node would outgrow the target node size
	overhead := 0
	if w.goff < 0 {
		overhead = len(subkey) + 2
	}
	if len(w.node) > 0 && len(w.node)+overhead+need > w.o.NodeSize {
		w.closeGroup()
		w.flushNode(true)
	}

	if w.goff < 0 {
		w.node = append(w.node, subkey...)
		w.goff = len(w.node)
		w.node = append(w.node, 0, 0)
	}

	binary.BigEndian.PutUint16(w.tmp, uint16(len(record)))
	w.node = append(w.node, w.tmp[:2]...)
	w.node = append(w.node, record...)
}

func (w *Writer) groupSize() int { return len(w.node) - w.goff - 2 }

func (w *Writer) closeGroup() {
	if w.goff < 0 {
		return
	}
	binary.BigEndian.PutUint16(w.node[w.goff:], uint16(w.groupSize()))
	w.goff = -1
}

// flushNode appends the buffered node to the sector area. When more is
// set the header points at the node that will follow it.
func (w *Writer) flushNode(more bool) {
	var next uint32
	if more {
		next = uint32(len(magic) + len(w.area) + nodeHeaderLen + len(w.node))
	}
	binary.BigEndian.PutUint32(w.tmp[0:], next)
	binary.BigEndian.PutUint32(w.tmp[4:], uint32(len(w.node)))

	w.area = append(w.area, w.tmp[:nodeHeaderLen]...)
	w.area = append(w.area, w.node...)
	w.node = w.node[:0]
}

// finishKey seals the current primary key's chain and records its head
// in the suffix index.
func (w *Writer) finishKey() {
	w.closeGroup()
	w.flushNode(false)
	w.index = append(w.index, nodeRef{Suffix: suffix24(w.prev), Offset: w.first})
}

func (w *Writer) rollSector(k0 byte) error {
	if err := w.closeSector(); err != nil {
		return err
	}
	f, err := os.Create(w.Table().SectorPath(k0))
	if err != nil {
		return err
	}
	w.f = f
	return nil
}

func (w *Writer) closeSector() error {
	if w.f == nil {
		return nil
	}

	if _, err := w.f.Write(magic); err != nil {
		return err
	}

	// node area, compressed when it pays off
	area := w.area
	codec := byte(sectorNoCompression)
	if w.o.Compression == SnappyCompression {
		w.snp = snappy.Encode(w.snp[:cap(w.snp)], w.area)
		if len(w.snp) < len(w.area)-len(w.area)/4 {
			area, codec = w.snp, sectorSnappyCompression
		}
	}
	if _, err := w.f.Write(area); err != nil {
		return err
	}

	// suffix index
	indexOff := uint64(len(magic) + len(area))
	var prev nodeRef
	for i, ref := range w.index {
		sfx, off := ref.Suffix, ref.Offset
		if i != 0 { // delta-encode
			sfx -= prev.Suffix
			off -= prev.Offset
		}
		prev = ref

		n := binary.PutUvarint(w.tmp[0:], uint64(sfx))
		n += binary.PutUvarint(w.tmp[n:], off)
		if _, err := w.f.Write(w.tmp[:n]); err != nil {
			return err
		}
	}

	// footer
	binary.BigEndian.PutUint64(w.tmp[0:], indexOff)
	w.tmp[8] = codec
	if _, err := w.f.Write(w.tmp[:9]); err != nil {
		return err
	}
	if _, err := w.f.Write(magic); err != nil {
		return err
	}

	err := w.f.Close()
	w.f = nil
	w.area = w.area[:0]
	w.index = w.index[:0]
	return err
}
