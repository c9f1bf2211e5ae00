package memfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/sandevgo/mnemo/internal/core"
)

const (
	// Payloads below this size are stored as-is; deflate overhead is not
	// worth it for small records.
	DefaultCompressionThreshold = 1024

	compressionLevel = flate.BestCompression
)

type CompressionStats struct {
	Compressed   int64 `json:"compressed"`
	Decompressed int64 `json:"decompressed"`
	SavedBytes   int64 `json:"savedBytes"`
}

// Compressor deflates oversized record payloads before they hit disk.
type Compressor struct {
	threshold int

	mu    sync.Mutex
	stats CompressionStats
}

func NewCompressor(threshold int) *Compressor {
	if threshold <= 0 {
		threshold = DefaultCompressionThreshold
	}
	return &Compressor{threshold: threshold}
}

// recordPayload is the compressible part of a record.
type recordPayload struct {
	Text     string `json:"text"`
	Response string `json:"response"`
}

// Pack converts a record to its persisted shape. Records whose text and
// response together exceed the threshold get a deflated payload and the
// compressed flag; everything else passes through unchanged.
func (c *Compressor) Pack(rec core.MemoryRecord) (storedRecord, error) {
	originalSize := len(rec.Text) + len(rec.Response)
	if originalSize < c.threshold {
		return storedRecord{MemoryRecord: rec}, nil
	}

	raw, err := json.Marshal(recordPayload{Text: rec.Text, Response: rec.Response})
	if err != nil {
		return storedRecord{}, fmt.Errorf("marshal payload: %w", err)
	}

	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, compressionLevel)
	if err != nil {
		return storedRecord{}, fmt.Errorf("create deflate writer: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return storedRecord{}, fmt.Errorf("deflate payload: %w", err)
	}
	if err := w.Close(); err != nil {
		return storedRecord{}, fmt.Errorf("close deflate writer: %w", err)
	}

	// Deflate can grow tiny or incompressible inputs; keep the original.
	if buf.Len() >= len(raw) {
		return storedRecord{MemoryRecord: rec}, nil
	}

	c.mu.Lock()
	c.stats.Compressed++
	c.stats.SavedBytes += int64(len(raw) - buf.Len())
	c.mu.Unlock()

	sr := storedRecord{MemoryRecord: rec, Payload: buf.Bytes()}
	sr.Compressed = true
	sr.Text = ""
	sr.Response = ""
	return sr, nil
}

// Unpack restores the in-memory record shape, inflating the payload when
// the compressed flag is set.
func (c *Compressor) Unpack(sr storedRecord) (core.MemoryRecord, error) {
	rec := sr.MemoryRecord
	if !sr.Compressed {
		return rec, nil
	}

	r := flate.NewReader(bytes.NewReader(sr.Payload))
	raw, err := io.ReadAll(r)
	if err != nil {
		return core.MemoryRecord{}, fmt.Errorf("inflate payload: %w", err)
	}
	if err := r.Close(); err != nil {
		return core.MemoryRecord{}, fmt.Errorf("close inflate reader: %w", err)
	}

	var payload recordPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return core.MemoryRecord{}, fmt.Errorf("unmarshal payload: %w", err)
	}

	c.mu.Lock()
	c.stats.Decompressed++
	c.mu.Unlock()

	rec.Text = payload.Text
	rec.Response = payload.Response
	rec.Compressed = false
	return rec, nil
}

func (c *Compressor) Stats() CompressionStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
