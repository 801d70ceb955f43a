package aof

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"log/slog"
	"os"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"kvcore/command"
	"kvcore/database"
	"kvcore/lib/utils"
)

/*
Every executed write is one record:

	| PayloadLength | CRC32C  | Payload                 |
	| 4 bytes       | 4 bytes | PayloadLength bytes     |

The payload is protobuf wire format:

	1: sequence number (varint)
	2: execution time, unix nanoseconds (varint)
	3: command name (bytes)
	4: argument (bytes, repeated in order)
*/

const (
	payloadLenBytes = 4
	checksumBytes   = 4
	headerBytes     = payloadLenBytes + checksumBytes

	maxPayloadBytes = 512 << 20
)

const (
	fieldSeq  protowire.Number = 1
	fieldAt   protowire.Number = 2
	fieldName protowire.Number = 3
	fieldArg  protowire.Number = 4
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// record is one logged command.
type record struct {
	seq  uint64
	at   time.Time
	line command.CmdLine
}

// encodeRecord frames a command executed at the given time.
func encodeRecord(seq uint64, at time.Time, line command.CmdLine) []byte {
	payload := make([]byte, 0, 32)
	payload = protowire.AppendTag(payload, fieldSeq, protowire.VarintType)
	payload = protowire.AppendVarint(payload, seq)
	payload = protowire.AppendTag(payload, fieldAt, protowire.VarintType)
	payload = protowire.AppendVarint(payload, uint64(at.UnixNano()))
	payload = protowire.AppendTag(payload, fieldName, protowire.BytesType)
	payload = protowire.AppendBytes(payload, line[0])
	for _, arg := range line[1:] {
		payload = protowire.AppendTag(payload, fieldArg, protowire.BytesType)
		payload = protowire.AppendBytes(payload, arg)
	}

	out := make([]byte, headerBytes, headerBytes+len(payload))
	binary.BigEndian.PutUint32(out[:payloadLenBytes], uint32(len(payload)))
	binary.BigEndian.PutUint32(out[payloadLenBytes:], crc32.Checksum(payload, castagnoli))
	return append(out, payload...)
}

// decodePayload parses the payload of one record. Unknown fields are skipped.
func decodePayload(payload []byte) (*record, error) {
	rec := &record{}
	var name []byte
	var args [][]byte
	for len(payload) > 0 {
		num, typ, n := protowire.ConsumeTag(payload)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		payload = payload[n:]

		switch {
		case num == fieldSeq && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(payload)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			rec.seq = v
			payload = payload[n:]
		case num == fieldAt && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(payload)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			rec.at = time.Unix(0, int64(v))
			payload = payload[n:]
		case (num == fieldName || num == fieldArg) && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(payload)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			if num == fieldName {
				name = v
			} else {
				args = append(args, v)
			}
			payload = payload[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, payload)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			payload = payload[n:]
		}
	}
	if name == nil {
		return nil, errors.New("record has no command name")
	}
	rec.line = utils.ToCmdLine2(string(name), args...)
	return rec, nil
}

// readRecord reads the next record. It returns io.EOF only at a clean end of file.
func readRecord(r *bufio.Reader) (*record, int64, error) {
	var header [headerBytes]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return nil, 0, io.EOF
		}
		return nil, 0, fmt.Errorf("incomplete record header: %w", err)
	}
	size := binary.BigEndian.Uint32(header[:payloadLenBytes])
	if size > maxPayloadBytes {
		return nil, 0, fmt.Errorf("record length %d exceeds limit", size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, 0, fmt.Errorf("incomplete record payload: %w", err)
	}
	expected := binary.BigEndian.Uint32(header[payloadLenBytes:])
	if actual := crc32.Checksum(payload, castagnoli); actual != expected {
		return nil, 0, fmt.Errorf("crc mismatch: expected %x, got %x", expected, actual)
	}
	rec, err := decodePayload(payload)
	if err != nil {
		return nil, 0, err
	}
	return rec, headerBytes + int64(size), nil
}

// replay executes every record of the log at path against db, each at its
// original execution time. It stops at the first truncated or corrupt record
// and returns the last sequence number and the length of the intact prefix.
func replay(path string, db *database.DB, log *slog.Logger) (lastSeq uint64, valid int64, err error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to open append log: %w", err)
	}
	defer file.Close()

	r := bufio.NewReader(file)
	count := 0
	for {
		rec, n, err := readRecord(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Warn("append log corrupt, stopping replay", "record", count, "offset", valid, "error", err)
			break
		}
		cmd, err := command.Parse(rec.line)
		if err != nil {
			log.Warn("append log holds an invalid command, stopping replay", "record", count, "offset", valid, "error", err)
			break
		}
		// commands that failed when first run fail the same way again
		if _, err := db.ExecAt(cmd, rec.at); err != nil {
			log.Debug("replayed command failed", "command", cmd.Name(), "error", err)
		}
		lastSeq = rec.seq
		valid += n
		count++
	}
	log.Info("append log loaded", "records", count, "bytes", valid)
	return lastSeq, valid, nil
}
