package grebedb

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/grebedb/grebedb/pkg/errs"
)

// Export and import save and restore database contents as a framed JSON
// record sequence (RFC 7464 text sequence: a 0x1E separator, one JSON
// document, a newline), suitable for backups and migrating data between
// databases. Keys and values are hex encoded and carry their own CRC-32C
// so a damaged dump is detected row by row rather than replayed silently.

const (
	recordSeparator byte = 0x1e
	recordNewline   byte = 0x0a
)

var exportCRCTable = crc32.MakeTable(crc32.Castagnoli)

// Import/export structure errors.
var (
	ErrMissingRecordSeparator = errs.New(errs.InvalidFileFormat, "missing record separator", nil)
	ErrHeaderNotFound         = errs.New(errs.InvalidFileFormat, "header not found", nil)
	ErrDuplicateHeader        = errs.New(errs.InvalidFileFormat, "duplicate header", nil)
	ErrFooterNotFound         = errs.New(errs.InvalidFileFormat, "footer not found", nil)
	ErrDuplicateFooter        = errs.New(errs.InvalidFileFormat, "duplicate footer", nil)
	ErrUnexpectedEOF          = errs.New(errs.InvalidFileFormat, "unexpected end of file", nil)
)

// exportRow is one record of the dump: a metadata header, a key-value
// pair, or the end-of-file footer, discriminated by Type.
type exportRow struct {
	Type string `json:"type"`

	KeyValueCount uint64 `json:"key_value_count,omitempty"`

	Key         string `json:"key,omitempty"`
	Value       string `json:"value,omitempty"`
	Index       uint64 `json:"index,omitempty"`
	KeyCRC32C   uint32 `json:"key_crc32c,omitempty"`
	ValueCRC32C uint32 `json:"value_crc32c,omitempty"`
}

const (
	rowTypeMetadata = "metadata"
	rowTypeKeyValue = "key_value"
	rowTypeEOF      = "eof"
)

// ExportProgressFunc receives the number of key-value rows processed so
// far. It may be nil.
type ExportProgressFunc func(count uint64)

// Export writes every key-value pair of db to w as a framed JSON record
// sequence: a metadata header, one row per pair in ascending key order,
// and a footer marking the dump complete.
func Export(db *Database, w io.Writer, progress ExportProgressFunc) error {
	bw := bufio.NewWriter(w)

	header := exportRow{Type: rowTypeMetadata, KeyValueCount: db.KeyValueCount()}
	if err := writeExportRow(bw, &header); err != nil {
		return err
	}

	cur := db.NewCursor()
	var counter uint64
	for {
		key, value, ok, err := cur.Next(nil)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		row := exportRow{
			Type:        rowTypeKeyValue,
			Key:         fmt.Sprintf("%X", key),
			Value:       fmt.Sprintf("%X", value),
			Index:       counter,
			KeyCRC32C:   crc32.Checksum(key, exportCRCTable),
			ValueCRC32C: crc32.Checksum(value, exportCRCTable),
		}
		if err := writeExportRow(bw, &row); err != nil {
			return err
		}
		counter++
		if progress != nil {
			progress(counter)
		}
	}

	footer := exportRow{Type: rowTypeEOF}
	if err := writeExportRow(bw, &footer); err != nil {
		return err
	}
	return bw.Flush()
}

func writeExportRow(bw *bufio.Writer, row *exportRow) error {
	if err := bw.WriteByte(recordSeparator); err != nil {
		return errs.Wrap(err)
	}
	data, err := json.Marshal(row)
	if err != nil {
		return errs.Wrap(err)
	}
	if _, err := bw.Write(data); err != nil {
		return errs.Wrap(err)
	}
	if err := bw.WriteByte(recordNewline); err != nil {
		return errs.Wrap(err)
	}
	return nil
}

// Import replays a record sequence produced by Export into db, verifying
// each row's checksums, and flushes once the input is exhausted. A dump
// without a footer is still flushed as far as it was read, and Import then
// returns ErrFooterNotFound. The dump's pairs are inserted with Put
// semantics: existing keys are overwritten.
func Import(db *Database, r io.Reader, progress ExportProgressFunc) error {
	br := bufio.NewReader(r)

	var headerFound, footerFound bool
	var counter uint64

	for {
		more, err := readRecordSeparator(br)
		if err != nil {
			return err
		}
		if !more {
			break
		}

		line, err := br.ReadBytes(recordNewline)
		if err != nil {
			return ErrUnexpectedEOF
		}

		var row exportRow
		if err := json.Unmarshal(line, &row); err != nil {
			return errs.New(errs.InvalidFileFormat, "malformed record", err)
		}

		switch row.Type {
		case rowTypeMetadata:
			if headerFound {
				return ErrDuplicateHeader
			}
			headerFound = true
		case rowTypeKeyValue:
			if !headerFound {
				return ErrHeaderNotFound
			}
			if err := importKeyValueRow(db, &row); err != nil {
				return err
			}
			counter++
			if progress != nil {
				progress(counter)
			}
		case rowTypeEOF:
			if footerFound {
				return ErrDuplicateFooter
			}
			footerFound = true
		default:
			return errs.New(errs.InvalidFileFormat, "unknown record type "+row.Type, nil)
		}
	}

	if err := db.Flush(); err != nil {
		return err
	}
	if !footerFound {
		return ErrFooterNotFound
	}
	return nil
}

func readRecordSeparator(br *bufio.Reader) (bool, error) {
	b, err := br.ReadByte()
	if err == io.EOF {
		return false, nil
	}
	if err != nil {
		return false, errs.Wrap(err)
	}
	if b != recordSeparator {
		return false, ErrMissingRecordSeparator
	}
	return true, nil
}

func importKeyValueRow(db *Database, row *exportRow) error {
	key, err := hex.DecodeString(row.Key)
	if err != nil {
		return errs.New(errs.InvalidFileFormat, fmt.Sprintf("bad key encoding, row = %d", row.Index), err)
	}
	value, err := hex.DecodeString(row.Value)
	if err != nil {
		return errs.New(errs.InvalidFileFormat, fmt.Sprintf("bad value encoding, row = %d", row.Index), err)
	}

	if crc32.Checksum(key, exportCRCTable) != row.KeyCRC32C {
		return errs.New(errs.BadChecksum, fmt.Sprintf("bad checksum, key, row = %d", row.Index), nil)
	}
	if crc32.Checksum(value, exportCRCTable) != row.ValueCRC32C {
		return errs.New(errs.BadChecksum, fmt.Sprintf("bad checksum, value, row = %d", row.Index), nil)
	}

	return db.Put(key, value)
}
