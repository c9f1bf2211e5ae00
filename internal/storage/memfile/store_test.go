package memfile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sandevgo/mnemo/internal/core"
	"github.com/sandevgo/mnemo/internal/crypto"
)

const storeTestKey = "an-example-master-key-of-32-chars"

func newTestStore(t *testing.T, key string) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memory.json")

	var codec *crypto.Codec
	if key != "" {
		var err error
		codec, err = crypto.NewCodec(key)
		if err != nil {
			t.Fatalf("NewCodec: %v", err)
		}
	}
	return New(path, codec, NewCompressor(DefaultCompressionThreshold))
}

func testRecord(id, text string) core.MemoryRecord {
	return core.MemoryRecord{
		ID:        id,
		Text:      text,
		Response:  "response to " + text,
		Timestamp: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestStore_LoadMissingFile(t *testing.T) {
	s := newTestStore(t, "")

	records, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected empty set, got %d records", len(records))
	}
}

func TestStore_AppendAndLoad_Plaintext(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, "")

	for i, text := range []string{"first", "second", "third"} {
		rec := testRecord(string(rune('a'+i)), text)
		if err := s.Append(ctx, rec); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	records, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if records[0].Text != "first" || records[2].Text != "third" {
		t.Errorf("append order not preserved: %v", records)
	}

	// Plaintext mode keeps the legacy layout readable as raw JSON.
	data, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var plain plainFile
	if err := json.Unmarshal(data, &plain); err != nil {
		t.Fatalf("store file is not plaintext JSON: %v", err)
	}
	if len(plain.Messages) != 3 {
		t.Errorf("plaintext file has %d messages, want 3", len(plain.Messages))
	}
}

func TestStore_AppendAndLoad_Encrypted(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, storeTestKey)

	rec := testRecord("mem_1", "remember my password is 1234")
	if err := s.Append(ctx, rec); err != nil {
		t.Fatalf("Append: %v", err)
	}

	records, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(records) != 1 || records[0].Text != rec.Text {
		t.Fatalf("round trip mismatch: %+v", records)
	}

	// Ciphertext must not leak the plaintext.
	data, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if strings.Contains(string(data), "password") {
		t.Error("plaintext visible in encrypted store file")
	}
}

func TestStore_LoadEncryptedWithWrongKey(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, storeTestKey)

	if err := s.Append(ctx, testRecord("mem_1", "secret contents")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	wrongCodec, err := crypto.NewCodec("completely-different-32-char-key!")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	wrong := New(s.Path(), wrongCodec, NewCompressor(0))

	// Wrong key degrades to an empty set, never a crash or garbage.
	records, err := wrong.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected empty set under wrong key, got %d records", len(records))
	}
}

func TestStore_LoadEncryptedWithoutKey(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, storeTestKey)

	if err := s.Append(ctx, testRecord("mem_1", "secret contents")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	noKey := New(s.Path(), nil, NewCompressor(0))
	records, err := noKey.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected empty set without key, got %d records", len(records))
	}
}

func TestStore_LoadMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not_json", data: "definitely not json {"},
		{name: "json_without_known_fields", data: `{"foo": "bar"}`},
		{name: "empty_object", data: `{}`},
		{name: "empty_file", data: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t, "")
			if err := os.WriteFile(s.Path(), []byte(tt.data), 0o644); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}

			records, err := s.Load(context.Background())
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if len(records) != 0 {
				t.Errorf("expected empty set for malformed data, got %d", len(records))
			}
		})
	}
}

func TestStore_PlaintextLegacyFileReadable(t *testing.T) {
	s := newTestStore(t, storeTestKey)

	// A pre-encryption file with a messages field loads directly even
	// when a key is configured.
	legacy := `{"messages":[{"id":"old_1","text":"legacy record","response":"ok","timestamp":"2024-01-02T03:04:05Z"}]}`
	if err := os.WriteFile(s.Path(), []byte(legacy), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	records, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(records) != 1 || records[0].ID != "old_1" {
		t.Fatalf("legacy file not readable: %+v", records)
	}
}

func TestStore_RewriteReplacesContents(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, "")

	if err := s.Append(ctx, testRecord("a", "one")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append(ctx, testRecord("b", "two")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if err := s.Rewrite(ctx, []core.MemoryRecord{testRecord("c", "only")}); err != nil {
		t.Fatalf("Rewrite: %v", err)
	}

	records, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(records) != 1 || records[0].ID != "c" {
		t.Errorf("rewrite did not replace contents: %+v", records)
	}
}

func TestStore_CompressedRecordRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, storeTestKey)

	big := testRecord("big_1", strings.Repeat("a fairly repetitive sentence. ", 100))
	if err := s.Append(ctx, big); err != nil {
		t.Fatalf("Append: %v", err)
	}

	records, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Text != big.Text || records[0].Response != big.Response {
		t.Error("compressed payload did not round trip")
	}
	if records[0].Compressed {
		t.Error("compressed flag should be cleared after inflation")
	}

	stats := s.CompressionStats()
	if stats.Compressed == 0 {
		t.Error("expected compression to trigger for oversized payload")
	}
	if stats.SavedBytes <= 0 {
		t.Error("expected positive savedBytes")
	}
}
