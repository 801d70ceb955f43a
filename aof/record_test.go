package aof

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"kvcore/lib/utils"
	"kvcore/reply"
)

func TestRecordCodec(t *testing.T) {
	at := time.Unix(1700000000, 123456789)
	line := utils.ToCmdLine("ZADD", "z", "1.5", "m", "")
	data := encodeRecord(7, at, line)

	rec, n, err := readRecord(bufio.NewReader(bytes.NewReader(data)))
	if err != nil {
		t.Fatalf("readRecord() error = %v", err)
	}
	if n != int64(len(data)) {
		t.Errorf("readRecord() consumed %d bytes, want %d", n, len(data))
	}
	if rec.seq != 7 || !rec.at.Equal(at) {
		t.Errorf("seq, at = %d, %v, want 7, %v", rec.seq, rec.at, at)
	}
	if len(rec.line) != len(line) {
		t.Fatalf("line = %q, want %q", rec.line, line)
	}
	for i := range line {
		if !bytes.Equal(rec.line[i], line[i]) {
			t.Errorf("line[%d] = %q, want %q", i, rec.line[i], line[i])
		}
	}
}

func TestDecodePayload_SkipsUnknownFields(t *testing.T) {
	var payload []byte
	payload = protowire.AppendTag(payload, 9, protowire.BytesType)
	payload = protowire.AppendBytes(payload, []byte("future"))
	payload = protowire.AppendTag(payload, fieldName, protowire.BytesType)
	payload = protowire.AppendBytes(payload, []byte("DEL"))
	payload = protowire.AppendTag(payload, fieldArg, protowire.BytesType)
	payload = protowire.AppendBytes(payload, []byte("k"))

	rec, err := decodePayload(payload)
	if err != nil {
		t.Fatalf("decodePayload() error = %v", err)
	}
	if string(rec.line[0]) != "DEL" || string(rec.line[1]) != "k" {
		t.Errorf("line = %q", rec.line)
	}

	if _, err := decodePayload(payload[:len(payload)-1]); err == nil {
		t.Error("decodePayload(truncated) error = nil")
	}
	if _, err := decodePayload(nil); err == nil {
		t.Error("decodePayload(empty) error = nil, want missing name")
	}
}

func TestReadRecord_Corruption(t *testing.T) {
	good := encodeRecord(1, time.Now(), utils.ToCmdLine("SET", "k", "v"))

	flipped := bytes.Clone(good)
	flipped[len(flipped)-1] ^= 0xff

	tests := []struct {
		name string
		data []byte
	}{
		{name: "short header", data: good[:5]},
		{name: "short payload", data: good[:len(good)-2]},
		{name: "crc mismatch", data: flipped},
		{name: "oversized", data: []byte{0xff, 0xff, 0xff, 0xff, 0, 0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := readRecord(bufio.NewReader(bytes.NewReader(tt.data)))
			if err == nil || err == io.EOF {
				t.Errorf("readRecord() error = %v, want corruption error", err)
			}
		})
	}

	if _, _, err := readRecord(bufio.NewReader(bytes.NewReader(nil))); err != io.EOF {
		t.Errorf("readRecord(empty) error = %v, want io.EOF", err)
	}
}

func TestLogWriter_FlushOnBufferLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.aof")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	w := newLogWriter(f, 128, 16, 500*time.Millisecond, 30*time.Second)
	go w.run()

	first := encodeRecord(1, time.Now(), utils.ToCmdLine("SET", "k1", "v1"))
	if err := w.append(first); err != nil {
		t.Fatalf("append() error = %v", err)
	}
	if size := fileSize(t, path); size != 0 {
		t.Fatalf("size after first append = %d, want 0 (buffered)", size)
	}

	second := encodeRecord(2, time.Now(), utils.ToCmdLine("SET", string(bytes.Repeat([]byte("a"), 60)), string(bytes.Repeat([]byte("b"), 60))))
	if err := w.append(second); err != nil {
		t.Fatalf("append() error = %v", err)
	}
	if size := fileSize(t, path); size == 0 {
		t.Fatal("size after exceeding the buffer = 0, want flushed")
	}

	if err := w.close(); err != nil {
		t.Fatalf("close() error = %v", err)
	}
	if size := fileSize(t, path); size != int64(len(first)+len(second)) {
		t.Errorf("size after close = %d, want %d", size, len(first)+len(second))
	}
	if err := w.append(first); !errors.Is(err, reply.ErrBackendUnavailable) {
		t.Errorf("append() after close error = %v, want BackendUnavailable", err)
	}
}

func TestLogWriter_EnqueueTimeout(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "wal")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	// the writer goroutine is never started, so the queue never drains
	w := newLogWriter(f, 1024, 1, 20*time.Millisecond, time.Second)
	w.queue <- appendRequest{buffered: make(chan error, 1)}

	start := time.Now()
	err = w.append([]byte("x"))
	if !errors.Is(err, reply.ErrBackendUnavailable) {
		t.Fatalf("append() error = %v, want BackendUnavailable", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("append() blocked for %v", elapsed)
	}
}

func TestLogWriter_FailureIsSticky(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "wal")
	if err != nil {
		t.Fatal(err)
	}
	w := newLogWriter(f, 128, 4, time.Second, time.Hour)
	f.Close() // writes to a closed file fail

	if err := w.write(bytes.Repeat([]byte("x"), 200)); err == nil {
		t.Fatal("write() error = nil, want failure")
	}
	if err := w.write([]byte("y")); err == nil {
		t.Error("write() after failure error = nil")
	}
	if w.buffer.Len() != 0 {
		t.Errorf("buffer holds %d bytes of a rejected write", w.buffer.Len())
	}
}

func fileSize(t *testing.T, path string) int64 {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	return info.Size()
}
