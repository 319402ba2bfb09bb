// Package format implements the per-file framing used for every page and
// metadata file: a magic header, a compression flag, a length-prefixed
// serialized payload, and a trailing CRC-32C checksum.
package format

import (
	"container/list"
	"encoding/binary"
	"hash/crc32"
	"path"

	"github.com/grebedb/grebedb/pkg/errs"
	"github.com/grebedb/grebedb/pkg/vfs"
)

// MagicBytes identifies a grebedb file.
var MagicBytes = [8]byte{0xFE, 'G', 'r', 'e', 'b', 'e', 0x00, 0x00}

const (
	flagUncompressed byte = 0x00
	flagCompressed   byte = 0x01
)

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// Codec reads and writes framed files. It owns reusable scratch buffers so
// repeated calls on the hot write path don't allocate; it is not safe for
// concurrent use, matching the single-writer model the whole store runs
// under.
type Codec struct {
	Compressor Compressor
	Serializer Serializer

	fileBuf    []byte
	pageBuf    []byte
	payloadBuf []byte

	dirs *dirCache
}

// NewCodec builds a Codec. compressor may be nil, meaning "never compress."
func NewCodec(compressor Compressor, serializer Serializer) *Codec {
	if serializer == nil {
		serializer = GobSerializer{}
	}
	return &Codec{
		Compressor: compressor,
		Serializer: serializer,
		dirs:       newDirCache(64),
	}
}

// WriteFile serializes value, frames it, optionally compresses it, and
// writes it to v at path, creating any missing parent directories (using
// the directory cache to skip redundant calls).
func (c *Codec) WriteFile(v vfs.VFS, p string, value any, sync vfs.SyncMode) error {
	c.fileBuf = c.fileBuf[:0]
	c.pageBuf = c.pageBuf[:0]
	c.payloadBuf = c.payloadBuf[:0]

	var err error
	c.payloadBuf, err = c.Serializer.Marshal(c.payloadBuf[:0], value)
	if err != nil {
		return errs.New(errs.InvalidFileFormat, p+": serialize: "+err.Error(), err)
	}

	c.pageBuf = appendUint64BE(c.pageBuf, uint64(len(c.payloadBuf)))
	c.pageBuf = append(c.pageBuf, c.payloadBuf...)
	crc := crc32.Checksum(c.payloadBuf, crcTable)
	c.pageBuf = appendUint32BE(c.pageBuf, crc)

	c.fileBuf = append(c.fileBuf, MagicBytes[:]...)

	if c.Compressor != nil {
		c.fileBuf = append(c.fileBuf, flagCompressed)
		compressed, err := c.Compressor.Compress(c.pageBuf)
		if err != nil {
			return errs.New(errs.InvalidFileFormat, p+": compress: "+err.Error(), err)
		}
		c.fileBuf = append(c.fileBuf, compressed...)
	} else {
		c.fileBuf = append(c.fileBuf, flagUncompressed)
		c.fileBuf = append(c.fileBuf, c.pageBuf...)
	}

	dir := path.Dir(p)
	if dir != "." && !c.dirs.seen(dir) {
		if err := v.CreateDirAll(dir); err != nil {
			return err
		}
		c.dirs.add(dir)
	}

	return v.Write(p, c.fileBuf, sync)
}

// ReadFile reads, verifies and deserializes the file at path into out
// (a pointer).
func (c *Codec) ReadFile(v vfs.VFS, p string, out any) error {
	raw, err := v.Read(p)
	if err != nil {
		return err
	}
	if len(raw) < 9 {
		return errs.New(errs.InvalidFileFormat, p+": file too short", nil)
	}
	if [8]byte(raw[:8]) != MagicBytes {
		return errs.New(errs.InvalidFileFormat, p+": bad magic", nil)
	}

	flag := raw[8]
	body := raw[9:]

	switch flag {
	case flagCompressed:
		if c.Compressor == nil {
			return errs.New(errs.InvalidFileFormat, p+": compression unavailable", nil)
		}
		c.pageBuf, err = c.Compressor.Decompress(c.pageBuf[:0], body)
		if err != nil {
			return errs.New(errs.InvalidFileFormat, p+": decompress: "+err.Error(), err)
		}
	case flagUncompressed:
		c.pageBuf = append(c.pageBuf[:0], body...)
	default:
		return errs.New(errs.InvalidFileFormat, p+": bad compression flag", nil)
	}

	if len(c.pageBuf) < 12 {
		return errs.New(errs.InvalidFileFormat, p+": page body too short", nil)
	}

	size := binary.BigEndian.Uint64(c.pageBuf[0:8])
	if uint64(len(c.pageBuf)) < 8+size+4 {
		return errs.New(errs.InvalidFileFormat, p+": truncated payload", nil)
	}

	payload := c.pageBuf[8 : 8+size]
	wantCRC := binary.BigEndian.Uint32(c.pageBuf[8+size : 8+size+4])
	gotCRC := crc32.Checksum(payload, crcTable)
	if wantCRC != gotCRC {
		return errs.New(errs.BadChecksum, p+": checksum mismatch", nil)
	}

	if err := c.Serializer.Unmarshal(payload, out); err != nil {
		return errs.New(errs.InvalidFileFormat, p+": deserialize: "+err.Error(), err)
	}
	return nil
}

func appendUint64BE(dst []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(dst, tmp[:]...)
}

func appendUint32BE(dst []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(dst, tmp[:]...)
}

// dirCache remembers recently-created directories so the hot write path
// skips redundant CreateDirAll calls. Backed by container/list, the same
// structure used for the page cache's LRU.
type dirCache struct {
	capacity int
	ll       *list.List
	index    map[string]*list.Element
}

func newDirCache(capacity int) *dirCache {
	return &dirCache{capacity: capacity, ll: list.New(), index: make(map[string]*list.Element)}
}

func (d *dirCache) seen(dir string) bool {
	el, ok := d.index[dir]
	if !ok {
		return false
	}
	d.ll.MoveToFront(el)
	return true
}

func (d *dirCache) add(dir string) {
	if _, ok := d.index[dir]; ok {
		return
	}
	el := d.ll.PushFront(dir)
	d.index[dir] = el
	if d.ll.Len() > d.capacity {
		back := d.ll.Back()
		if back != nil {
			d.ll.Remove(back)
			delete(d.index, back.Value.(string))
		}
	}
}
