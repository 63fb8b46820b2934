package ldb

import (
	"encoding/binary"
	"strings"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

// mkGroup encodes one dataset group.
func mkGroup(subkey string, recs ...string) []byte {
	var ds []byte
	for _, r := range recs {
		var lp [2]byte
		binary.BigEndian.PutUint16(lp[:], uint16(len(r)))
		ds = append(ds, lp[:]...)
		ds = append(ds, r...)
	}

	out := []byte(subkey)
	var sz [2]byte
	binary.BigEndian.PutUint16(sz[:], uint16(len(ds)))
	out = append(out, sz[:]...)
	return append(out, ds...)
}

// mkArea lays out a chained node area the way sector files store it.
func mkArea(nodes ...[]byte) []byte {
	area := append([]byte{}, magic...)
	for i, content := range nodes {
		var next uint32
		if i < len(nodes)-1 {
			next = uint32(len(area) + nodeHeaderLen + len(content))
		}

		var hdr [nodeHeaderLen]byte
		binary.BigEndian.PutUint32(hdr[:], next)
		binary.BigEndian.PutUint32(hdr[4:], uint32(len(content)))
		area = append(area, hdr[:]...)
		area = append(area, content...)
	}
	return area
}

// mkSector wraps a node area into a borrowable sector image for one key.
func mkSector(key []byte, nodes ...[]byte) *Sector {
	return &Sector{
		k0:    key[0],
		area:  mkArea(nodes...),
		index: []nodeRef{{Suffix: suffix24(key), Offset: uint64(len(magic))}},
	}
}

var _ = Describe("validateNode", func() {
	It("should accept exact group tiling", func() {
		content := append(mkGroup("aa", "one", "two"), mkGroup("bb", "three")...)
		Expect(validateNode(content, 2)).To(BeTrue())
		Expect(validateNode(nil, 2)).To(BeTrue())
	})

	It("should reject length overruns", func() {
		content := mkGroup("aa", "one")
		binary.BigEndian.PutUint16(content[2:], 100) // dataset size beyond the buffer
		Expect(validateNode(content, 2)).To(BeFalse())

		Expect(validateNode([]byte{'a'}, 2)).To(BeFalse())    // truncated subkey
		Expect(validateNode([]byte{'a', 'a'}, 2)).To(BeFalse()) // missing size prefix
	})

	It("should reject trailing garbage", func() {
		content := append(mkGroup("aa", "one"), 0)
		Expect(validateNode(content, 2)).To(BeFalse())
	})
})

var _ = Describe("decodeNode", func() {
	var table = Table{KeyLen: 6}
	var key = []byte("\x01\x00\x00\x01aa")

	It("should skip corrupt nodes without touching the handler", func() {
		content := mkGroup("aa", "one")
		binary.BigEndian.PutUint16(content[2:], 0xfff0)

		var records uint32
		done := table.decodeNode(content, key, true, &records, func(_, _, _ []byte, _ uint32) bool {
			Fail("handler invoked for a corrupt node")
			return true
		})
		Expect(done).To(BeFalse())
		Expect(records).To(BeZero())
	})

	It("should drop oversized records but keep the cursor intact", func() {
		huge := strings.Repeat("x", MaxRecLen-32)      // first length over the limit
		barely := strings.Repeat("y", MaxRecLen-33)    // longest record still delivered
		content := mkGroup("aa", huge, "after")

		var got []string
		var records uint32
		table.decodeNode(content, key, true, &records, func(_, _, record []byte, index uint32) bool {
			got = append(got, string(record))
			Expect(index).To(Equal(records))
			return false
		})
		Expect(records).To(Equal(uint32(1)))
		Expect(got).To(Equal([]string{"after"}))

		got, records = got[:0], 0
		table.decodeNode(mkGroup("aa", barely), key, true, &records, func(_, _, record []byte, _ uint32) bool {
			got = append(got, string(record))
			return false
		})
		Expect(records).To(Equal(uint32(1)))
		Expect(got[0]).To(HaveLen(MaxRecLen - 33))
	})

	It("should halt immediately on a stop signal", func() {
		content := append(mkGroup("aa", "one", "two"), mkGroup("bb", "three")...)

		var records uint32
		done := table.decodeNode(content, key, true, &records, func(_, _, _ []byte, _ uint32) bool {
			return true
		})
		Expect(done).To(BeTrue())
		Expect(records).To(Equal(uint32(1)))
	})

	It("should stop at a record overrunning its dataset", func() {
		content := mkGroup("aa", "one", "two")
		binary.BigEndian.PutUint16(content[4:], 0xff00) // first record length beyond the dataset

		var records uint32
		table.decodeNode(content, key, true, &records, func(_, _, _ []byte, _ uint32) bool {
			return false
		})
		Expect(records).To(BeZero())
	})
})

var _ = Describe("memNodes", func() {
	var table = Table{KeyLen: 6}
	var key = []byte("\x02\x00\x00\x05aa")

	It("should recover from a corrupt node mid-chain", func() {
		bad := mkGroup("aa", "lost")
		binary.BigEndian.PutUint16(bad[2:], 0xfff0)
		sector := mkSector(key, bad, mkGroup("aa", "kept"))

		var got []string
		n := table.FetchRecordset(sector, key, true, func(_, _, record []byte, _ uint32) bool {
			got = append(got, string(record))
			return false
		})
		Expect(n).To(Equal(uint32(1)))
		Expect(got).To(Equal([]string{"kept"}))
	})

	It("should not read past a truncated area", func() {
		sector := mkSector(key, mkGroup("aa", "one"))
		sector.area = sector.area[:len(sector.area)-3]

		Expect(table.FetchRecordset(sector, key, true, func(_, _, _ []byte, _ uint32) bool {
			Fail("handler invoked for a truncated node")
			return true
		})).To(BeZero())
	})

	It("should end the chain on a dangling cursor", func() {
		src := &memNodes{area: mkArea(mkGroup("aa", "one")), start: 1 << 20}
		content, next := src.readNode(src.first())
		Expect(content).To(BeNil())
		Expect(next).To(BeZero())
	})
})
