package objstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/go-git/go-git/v5/plumbing"
)

const (
	indexSignature   = "DIRC"
	indexHeaderSize  = 12
	indexEntryFixed  = 62
	indexChecksumLen = 20

	flagExtended  = 0x4000
	flagStageMask = 0x3000
)

// ErrMalformedIndex is matched by *MalformedIndexError.
var ErrMalformedIndex = errors.New("malformed index")

// MalformedIndexError stops an index scan. Entries decoded before Offset are
// still valid.
type MalformedIndexError struct {
	Offset int
	Reason string
}

func (e *MalformedIndexError) Error() string {
	return fmt.Sprintf("malformed index entry at offset %d: %s", e.Offset, e.Reason)
}

func (e *MalformedIndexError) Is(target error) bool { return target == ErrMalformedIndex }

type IndexEntry struct {
	Path    string // slash separated, relative to the worktree root
	Hash    plumbing.Hash
	Mode    uint32
	Size    uint32
	ModTime time.Time
	Flags   uint16
}

// Stage is the merge stage (0 unless the path is conflicted).
func (e IndexEntry) Stage() int {
	return int(e.Flags&flagStageMask) >> 12
}

// ParseIndex decodes a version 2 or 3 index. On a malformed entry it returns
// the entries read so far together with a *MalformedIndexError.
func ParseIndex(data []byte) ([]IndexEntry, error) {
	if len(data) < indexHeaderSize+indexChecksumLen {
		return nil, fmt.Errorf("index too short: %d bytes", len(data))
	}
	if string(data[:4]) != indexSignature {
		return nil, fmt.Errorf("invalid index signature %q", data[:4])
	}
	version := binary.BigEndian.Uint32(data[4:8])
	if version != 2 && version != 3 {
		return nil, fmt.Errorf("unsupported index version %d", version)
	}
	count := binary.BigEndian.Uint32(data[8:12])

	end := len(data) - indexChecksumLen
	entries := make([]IndexEntry, 0, min(int(count), end/indexEntryFixed))
	off := indexHeaderSize
	for i := uint32(0); i < count && off < end; i++ {
		if off+indexEntryFixed > end {
			return entries, &MalformedIndexError{Offset: off, Reason: "truncated entry"}
		}
		rec := data[off:]
		var e IndexEntry
		e.ModTime = time.Unix(int64(binary.BigEndian.Uint32(rec[8:12])), int64(binary.BigEndian.Uint32(rec[12:16])))
		e.Mode = binary.BigEndian.Uint32(rec[24:28])
		e.Size = binary.BigEndian.Uint32(rec[36:40])
		copy(e.Hash[:], rec[40:60])
		e.Flags = binary.BigEndian.Uint16(rec[60:62])

		nameStart := off + indexEntryFixed
		if version >= 3 && e.Flags&flagExtended != 0 {
			nameStart += 2
		}
		if nameStart >= end {
			return entries, &MalformedIndexError{Offset: off, Reason: "truncated entry"}
		}
		nul := bytes.IndexByte(data[nameStart:end], 0)
		if nul < 0 {
			return entries, &MalformedIndexError{Offset: off, Reason: "unterminated path"}
		}
		name := data[nameStart : nameStart+nul]
		if !utf8.Valid(name) {
			return entries, &MalformedIndexError{Offset: off, Reason: "path is not valid UTF-8"}
		}
		e.Path = string(name)
		entries = append(entries, e)

		// Entries are NUL padded to a multiple of 8 bytes from their start.
		entryLen := nameStart + nul + 1 - off
		off += (entryLen + 7) &^ 7
	}
	return entries, nil
}
