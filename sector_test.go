package ldb_test

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/perezale/ldb"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("LoadSector", func() {
	var dir string
	var table ldb.Table

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "ldb-sector-test")
		Expect(err).NotTo(HaveOccurred())
		table = ldb.Table{Dir: dir, KeyLen: 6}
	})

	AfterEach(func() {
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	It("should treat a missing sector file as an empty shard", func() {
		sector, err := table.LoadSector(42)
		Expect(err).NotTo(HaveOccurred())
		Expect(sector).To(BeNil())

		none := ldb.Table{Dir: filepath.Join(dir, "nope"), KeyLen: 6}
		sector, err = none.LoadSector(42)
		Expect(err).NotTo(HaveOccurred())
		Expect(sector).To(BeNil())
	})

	It("should reject truncated sector files", func() {
		Expect(os.WriteFile(table.SectorPath(42), []byte("junk"), 0644)).To(Succeed())
		_, err := table.LoadSector(42)
		Expect(err).To(MatchError("ldb: bad sector footer"))
	})

	It("should reject a corrupted footer", func() {
		Expect(os.WriteFile(table.SectorPath(42), []byte(strings.Repeat("x", 64)), 0644)).To(Succeed())
		_, err := table.LoadSector(42)
		Expect(err).To(MatchError("ldb: bad magic byte sequence"))
	})
})
