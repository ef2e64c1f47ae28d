// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

package session

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/GeneticxCln/OpenAgent-Terminal/lib/codec"
)

// Archive format constants. An archive file is:
//
//	magic(5) + compression tag(1) + uncompressed size(4, big-endian)
//	+ payload
//
// where the payload is the CBOR-encoded session, compressed per the
// tag. These values are format constants — changing them breaks
// existing archives.
const (
	// archiveVersion is encoded in the magic's trailing digit.
	archiveVersion = 1

	// archiveHeaderSize is the fixed header length in bytes.
	archiveHeaderSize = 10

	// ArchiveExtension is the archive file suffix.
	ArchiveExtension = ".oas"
)

// archiveMagic is the 5-byte archive file signature: "OpenAgent
// SessioN" + format version digit.
var archiveMagic = [5]byte{'O', 'A', 'S', 'N', '0' + archiveVersion}

// CompressionTag identifies the compression algorithm used for an
// archive payload. Stored as one byte in the archive header.
type CompressionTag uint8

const (
	// CompressionNone stores the payload uncompressed. The fallback
	// when compression would not shrink the payload.
	CompressionNone CompressionTag = 0

	// CompressionLZ4 is LZ4 block compression: fast, modest ratio.
	CompressionLZ4 CompressionTag = 1

	// CompressionZstd is zstd at its default level. The best choice
	// for session payloads, which are JSON-ish text. The default.
	CompressionZstd CompressionTag = 2
)

// String returns the configuration name of a compression tag.
func (tag CompressionTag) String() string {
	switch tag {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", tag)
	}
}

// ParseCompressionTag parses a compression tag from its configuration
// name.
func ParseCompressionTag(name string) (CompressionTag, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression tag: %q", name)
	}
}

// zstdEncoder and zstdDecoder are reused across calls to avoid
// repeated initialization overhead. Both are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
	)
	if err != nil {
		panic("session: zstd encoder initialization failed: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("session: zstd decoder initialization failed: " + err.Error())
	}
}

// errIncompressible is returned by compress functions when the output
// would not be smaller than the input. The archiver falls back to
// CompressionNone.
var errIncompressible = errors.New("payload is incompressible")

// Archiver packs sessions into single-file archives under a
// directory, one file per session id. Used by the store to preserve
// pruned sessions and to restore them later.
type Archiver struct {
	directory   string
	compression CompressionTag
}

// NewArchiver creates an Archiver writing to the given directory
// (created with mode 0700 if absent) with the given default
// compression.
func NewArchiver(directory string, compression CompressionTag) (*Archiver, error) {
	if directory == "" {
		return nil, fmt.Errorf("archive directory is required")
	}
	switch compression {
	case CompressionNone, CompressionLZ4, CompressionZstd:
	default:
		return nil, fmt.Errorf("unsupported compression tag: %d", compression)
	}
	if err := os.MkdirAll(directory, 0o700); err != nil {
		return nil, fmt.Errorf("creating archive directory %s: %w", directory, err)
	}
	return &Archiver{directory: directory, compression: compression}, nil
}

// Path returns the archive file path for a session id.
func (a *Archiver) Path(sessionID string) string {
	return filepath.Join(a.directory, sessionID+ArchiveExtension)
}

// Archive writes one session to its archive file, atomically,
// overwriting any previous archive of the same id. Returns the
// archive path. When the configured compression cannot shrink the
// payload the archive stores it uncompressed.
func (a *Archiver) Archive(sess *Session) (string, error) {
	if err := validateSessionID(sess.ID); err != nil {
		return "", err
	}

	payload, err := codec.Marshal(sess)
	if err != nil {
		return "", fmt.Errorf("encoding session %s: %w", sess.ID, err)
	}
	// The header stores the payload size as uint32, capping a single
	// archived session at 4 GiB.
	if uint64(len(payload)) > math.MaxUint32 {
		return "", fmt.Errorf("session %s is too large to archive: %d bytes", sess.ID, len(payload))
	}

	compressed, tag, err := compressPayload(payload, a.compression)
	if err != nil {
		return "", fmt.Errorf("compressing session %s: %w", sess.ID, err)
	}

	data := make([]byte, archiveHeaderSize+len(compressed))
	copy(data[0:5], archiveMagic[:])
	data[5] = byte(tag)
	binary.BigEndian.PutUint32(data[6:10], uint32(len(payload)))
	copy(data[archiveHeaderSize:], compressed)

	path := a.Path(sess.ID)
	if err := writeFileAtomic(path, data); err != nil {
		return "", fmt.Errorf("writing archive %s: %w", path, err)
	}
	return path, nil
}

// Unarchive reads one archived session back. Unlike Store.Load, a
// missing or corrupt archive is an error: the caller asked for a
// specific archive and should hear why it cannot be produced.
func (a *Archiver) Unarchive(sessionID string) (*Session, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}

	path := a.Path(sessionID)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading archive: %w", err)
	}

	if len(data) < archiveHeaderSize {
		return nil, fmt.Errorf("archive %s is truncated: %d bytes", path, len(data))
	}
	if [5]byte(data[0:5]) != archiveMagic {
		return nil, fmt.Errorf("archive %s has invalid magic %q", path, data[0:5])
	}

	tag := CompressionTag(data[5])
	uncompressedSize := int(binary.BigEndian.Uint32(data[6:10]))

	payload, err := decompressPayload(data[archiveHeaderSize:], tag, uncompressedSize)
	if err != nil {
		return nil, fmt.Errorf("decompressing archive %s: %w", path, err)
	}

	var sess Session
	if err := codec.Unmarshal(payload, &sess); err != nil {
		return nil, fmt.Errorf("decoding archive %s: %w", path, err)
	}
	return &sess, nil
}

// Remove deletes a session's archive file. Idempotent.
func (a *Archiver) Remove(sessionID string) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}
	if err := os.Remove(a.Path(sessionID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing archive: %w", err)
	}
	return nil
}

// List returns the session ids with an archive file, sorted
// descending (newest timestamp-derived ids first).
func (a *Archiver) List() ([]string, error) {
	entries, err := os.ReadDir(a.directory)
	if err != nil {
		return nil, fmt.Errorf("scanning archive directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ArchiveExtension {
			continue
		}
		ids = append(ids, name[:len(name)-len(ArchiveExtension)])
	}
	// Timestamp-derived ids sort chronologically as strings.
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids, nil
}

// compressPayload compresses data with the requested algorithm,
// falling back to CompressionNone when the output would not be
// smaller. Returns the (possibly original) bytes and the tag actually
// used.
func compressPayload(data []byte, tag CompressionTag) ([]byte, CompressionTag, error) {
	switch tag {
	case CompressionNone:
		return data, CompressionNone, nil

	case CompressionLZ4:
		compressed, err := compressLZ4(data)
		if errors.Is(err, errIncompressible) {
			return data, CompressionNone, nil
		}
		if err != nil {
			return nil, 0, err
		}
		return compressed, CompressionLZ4, nil

	case CompressionZstd:
		compressed := zstdEncoder.EncodeAll(data, nil)
		if len(compressed) >= len(data) {
			return data, CompressionNone, nil
		}
		return compressed, CompressionZstd, nil

	default:
		return nil, 0, fmt.Errorf("unsupported compression tag: %d", tag)
	}
}

// decompressPayload reverses compressPayload. The uncompressed size
// from the archive header must match the output exactly; a mismatch
// means the archive is corrupt.
func decompressPayload(compressed []byte, tag CompressionTag, uncompressedSize int) ([]byte, error) {
	switch tag {
	case CompressionNone:
		if len(compressed) != uncompressedSize {
			return nil, fmt.Errorf("uncompressed payload: size %d does not match expected %d",
				len(compressed), uncompressedSize)
		}
		return compressed, nil

	case CompressionLZ4:
		destination := make([]byte, uncompressedSize)
		read, err := lz4.UncompressBlock(compressed, destination)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if read != uncompressedSize {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, uncompressedSize)
		}
		return destination, nil

	case CompressionZstd:
		result, err := zstdDecoder.DecodeAll(compressed, make([]byte, 0, uncompressedSize))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(result) != uncompressedSize {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result), uncompressedSize)
		}
		return result, nil

	default:
		return nil, fmt.Errorf("unsupported compression tag: %d", tag)
	}
}

// compressLZ4 compresses with LZ4 block mode, reporting
// errIncompressible when the block would not shrink.
func compressLZ4(data []byte) ([]byte, error) {
	bound := lz4.CompressBlockBound(len(data))
	destination := make([]byte, bound)

	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// CompressBlock returns 0 when it determines the data is
	// incompressible.
	if written == 0 || written >= len(data) {
		return nil, errIncompressible
	}
	return destination[:written], nil
}
