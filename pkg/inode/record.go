// Package inode implements the fixed-layout inode record and directory
// codec that StoreFS serializes into a Store's byte values, grounded on the
// field-by-field binary encoding style dittofs's badger metadata store uses
// for on-disk records.
package inode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/marlowfs/vfscore/pkg/vfs"
)

// recordVersion guards the binary layout; bump it if fields are added.
const recordVersion uint8 = 1

// Record is the fixed-width serialization of an inode's Stats, keyed by its
// own inode number in the Store.
type Record struct {
	Ino   vfs.Ino
	Stats vfs.Stats
}

// Encode serializes r into a fixed-width byte layout.
func (r Record) Encode() []byte {
	var buf bytes.Buffer
	buf.WriteByte(recordVersion)
	_ = binary.Write(&buf, binary.BigEndian, uint64(r.Ino))
	_ = binary.Write(&buf, binary.BigEndian, uint64(r.Stats.Size))
	_ = binary.Write(&buf, binary.BigEndian, uint32(r.Stats.Mode))
	_ = binary.Write(&buf, binary.BigEndian, r.Stats.Atime.UnixMilli())
	_ = binary.Write(&buf, binary.BigEndian, r.Stats.Mtime.UnixMilli())
	_ = binary.Write(&buf, binary.BigEndian, r.Stats.Ctime.UnixMilli())
	_ = binary.Write(&buf, binary.BigEndian, r.Stats.Birthtime.UnixMilli())
	_ = binary.Write(&buf, binary.BigEndian, r.Stats.UID)
	_ = binary.Write(&buf, binary.BigEndian, r.Stats.GID)
	_ = binary.Write(&buf, binary.BigEndian, r.Stats.Nlink)
	return buf.Bytes()
}

// Decode parses a Record from its Encode form.
func Decode(data []byte) (Record, error) {
	if len(data) == 0 || data[0] != recordVersion {
		return Record{}, fmt.Errorf("inode: unsupported record version")
	}
	r := bytes.NewReader(data[1:])
	var (
		ino, size                       uint64
		mode                            uint32
		atimeMs, mtimeMs, ctimeMs, btMs int64
		uid, gid, nlink                 uint32
	)
	for _, err := range []error{
		binary.Read(r, binary.BigEndian, &ino),
		binary.Read(r, binary.BigEndian, &size),
		binary.Read(r, binary.BigEndian, &mode),
		binary.Read(r, binary.BigEndian, &atimeMs),
		binary.Read(r, binary.BigEndian, &mtimeMs),
		binary.Read(r, binary.BigEndian, &ctimeMs),
		binary.Read(r, binary.BigEndian, &btMs),
		binary.Read(r, binary.BigEndian, &uid),
		binary.Read(r, binary.BigEndian, &gid),
		binary.Read(r, binary.BigEndian, &nlink),
	} {
		if err != nil {
			return Record{}, fmt.Errorf("inode: decode record: %w", err)
		}
	}
	return Record{
		Ino: vfs.Ino(ino),
		Stats: vfs.Stats{
			Ino:       vfs.Ino(ino),
			Size:      size,
			Mode:      vfs.FileMode(mode),
			Atime:     msToTime(atimeMs),
			Mtime:     msToTime(mtimeMs),
			Ctime:     msToTime(ctimeMs),
			Birthtime: msToTime(btMs),
			UID:       uid,
			GID:       gid,
			Nlink:     nlink,
		},
	}, nil
}

// Directory maps child names to their inode numbers.
type Directory map[string]vfs.Ino

// EncodeDirectory serializes d in sorted-key order so two Store
// implementations of the same directory produce byte-identical blobs.
func EncodeDirectory(d Directory) []byte {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(names)))
	for _, name := range names {
		nameBytes := []byte(name)
		_ = binary.Write(&buf, binary.BigEndian, uint32(len(nameBytes)))
		buf.Write(nameBytes)
		_ = binary.Write(&buf, binary.BigEndian, uint64(d[name]))
	}
	return buf.Bytes()
}

// DecodeDirectory parses the EncodeDirectory format.
func DecodeDirectory(data []byte) (Directory, error) {
	d := make(Directory)
	if len(data) == 0 {
		return d, nil
	}
	r := bytes.NewReader(data)
	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("inode: decode directory count: %w", err)
	}
	for i := uint32(0); i < count; i++ {
		var nameLen uint32
		if err := binary.Read(r, binary.BigEndian, &nameLen); err != nil {
			return nil, fmt.Errorf("inode: decode directory entry %d: %w", i, err)
		}
		nameBytes := make([]byte, nameLen)
		if _, err := io.ReadFull(r, nameBytes); err != nil {
			return nil, fmt.Errorf("inode: decode directory name %d: %w", i, err)
		}
		var ino uint64
		if err := binary.Read(r, binary.BigEndian, &ino); err != nil {
			return nil, fmt.Errorf("inode: decode directory ino %d: %w", i, err)
		}
		d[string(nameBytes)] = vfs.Ino(ino)
	}
	return d, nil
}

func msToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
