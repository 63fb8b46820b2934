package ldb

import (
	"bufio"
	"encoding/hex"
	"io"

	"go.uber.org/zap"
)

// DumpOptions define dump specific options.
type DumpOptions struct {
	// HexData renders record payloads as hexadecimal instead of raw
	// bytes.
	// Default: false.
	HexData bool

	// Logger reports per-sector scan progress.
	// Default: no logging.
	Logger *zap.Logger
}

func (o *DumpOptions) norm() *DumpOptions {
	var oo DumpOptions
	if o != nil {
		oo = *o
	}
	if oo.Logger == nil {
		oo.Logger = zap.NewNop()
	}
	return &oo
}

// Dump writes every record of the table to w, one CSV line per record:
// the key (primary key plus matched subkey) rendered as hexadecimal,
// a comma and the payload. Sectors are scanned in ascending key order
// from their in-memory image and every subkey under a primary key is
// visited. It returns the number of records written.
func (t Table) Dump(w io.Writer, o *DumpOptions) (uint64, error) {
	if t.KeyLen < KeyLen {
		return 0, nil
	}

	o = o.norm()
	bw := bufio.NewWriter(w)

	emit := func(key, subkey, record []byte, _ uint32) bool {
		bw.WriteString(hex.EncodeToString(key[:KeyLen]))
		bw.WriteString(hex.EncodeToString(subkey))
		bw.WriteByte(',')
		if o.HexData {
			bw.WriteString(hex.EncodeToString(record))
		} else {
			bw.Write(record)
		}
		bw.WriteByte('\n')
		return false
	}

	var total uint64
	key := make([]byte, t.KeyLen)

	for k0 := 0; k0 < 256; k0++ {
		sector, err := t.LoadSector(byte(k0))
		if err != nil {
			return total, err
		}
		if sector == nil {
			continue
		}

		var found uint64
		key[0] = byte(k0)

		// probe all 256^3 suffixes under this leading byte
		for n := uint32(0); n < 1<<24; n++ {
			key[1], key[2], key[3] = byte(n>>16), byte(n>>8), byte(n)
			if !sector.Contains(key) {
				continue
			}
			found += uint64(t.FetchRecordset(sector, key, true, emit))
		}

		o.Logger.Debug("ldb: scanned sector",
			zap.Int("k0", k0),
			zap.Int("keys", sector.NumKeys()),
			zap.Uint64("records", found))

		sector.Release()
		total += found
	}

	return total, bw.Flush()
}
