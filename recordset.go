package ldb

import "bytes"

// RecordHandler is invoked once per decoded record with the originating
// key, the matched subkey (nil for fixed-length tables), the record
// payload and a zero-based sequence index. Returning true stops the walk
// immediately. The payload is a temporary buffer and must be copied if
// used beyond the callback.
type RecordHandler func(key, subkey, record []byte, index uint32) bool

// FetchRecordset walks every record reachable from the key's node chain
// and invokes h once per record in encounter order, returning the number
// of invocations. When sector is non-nil the chain is read from the
// in-memory image without any I/O; otherwise the key's sector file is
// opened and read from disk.
//
// Subkey filtering applies to variable-length tables with a nonzero
// subkey length: only dataset groups whose subkey matches the key bytes
// beyond the primary key are visited, unless skipSubkey is set.
//
// Malformed content never raises an error: nodes whose length bookkeeping
// is inconsistent are skipped whole, oversized records are skipped
// individually and an unreadable backing store yields zero records.
func (t Table) FetchRecordset(sector *Sector, key []byte, skipSubkey bool, h RecordHandler) uint32 {
	if len(key) < t.KeyLen || t.KeyLen < KeyLen {
		return 0
	}

	var src nodeSource
	if sector != nil {
		src = &memNodes{area: sector.area, start: sector.first(key)}
	} else if src = t.openNodes(key); src == nil {
		return 0
	}
	defer src.release()

	var records uint32
	done := false

	for cursor := src.first(); cursor != 0 && !done; {
		content, next := src.readNode(cursor)
		cursor = next
		if len(content) == 0 && cursor == 0 {
			break // reached end of list
		}

		// pass entire node (fixed record length) to the handler
		if t.RecLen != 0 {
			done = h(key, nil, content, records)
			records++
			continue
		}

		done = t.decodeNode(content, key, skipSubkey, &records, h)
	}

	return records
}

// decodeNode extracts the variable-length records of one node, walking
// its dataset groups sequentially. It reports whether the handler asked
// to stop.
func (t Table) decodeNode(content, key []byte, skipSubkey bool, records *uint32, h RecordHandler) bool {
	subkeyLen := t.subkeyLen()
	if !validateNode(content, subkeyLen) {
		return false
	}

	done := false
	for ptr := 0; ptr < len(content) && !done; {
		subkey := content[ptr : ptr+subkeyLen]
		ptr += subkeyLen

		size, _ := u16(content, ptr) // group bounds hold, see validateNode
		ptr += 2

		matched := true
		if !skipSubkey && subkeyLen > 0 {
			matched = bytes.Equal(subkey, key[KeyLen:KeyLen+subkeyLen])
		}

		if matched {
			end := ptr + size
			for dptr := ptr; dptr < end && !done; {
				recLen, ok := u16(content, dptr)
				dptr += 2
				if !ok || dptr+recLen > end {
					break // record overruns its dataset
				}

				// drop records longer than the desired limit
				if recLen+32 < MaxRecLen {
					done = h(key, subkey, content[dptr:dptr+recLen], *records)
					*records++
				}
				dptr += recLen
			}
		}
		ptr += size
	}
	return done
}

// --------------------------------------------------------------------

// AppendFirstRecord fetches the first non-empty record stored under key,
// appends it to dst and reports whether one was found. Zero-length
// placeholder records are scanned past.
func (t Table) AppendFirstRecord(dst, key []byte) ([]byte, bool) {
	found := false
	t.FetchRecordset(nil, key, false, func(_, _, record []byte, _ uint32) bool {
		if len(record) == 0 {
			return false
		}
		dst = append(dst, record...)
		found = true
		return true
	})
	return dst, found
}

// GetFirstRecord is a shortcut for AppendFirstRecord(nil, key).
func (t Table) GetFirstRecord(key []byte) ([]byte, bool) {
	return t.AppendFirstRecord(nil, key)
}

// KeyExists reports whether at least one record is stored under key. At
// most one record is decoded.
func (t Table) KeyExists(key []byte) bool {
	return t.FetchRecordset(nil, key, false, func(_, _, _ []byte, _ uint32) bool {
		return true
	}) > 0
}
