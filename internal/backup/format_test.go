package backup

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nvandessel/tango/internal/graph"
	"github.com/nvandessel/tango/internal/store"
)

func testSnapshot() *Snapshot {
	return &Snapshot{
		CreatedAt: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		Nodes: []graph.NodeRecord{
			{ID: "1", Name: "Inner Critic", Maturity: graph.Float64(2), EgoState: "Controlling Parent", Role: "Persecutor"},
			{ID: "2", Name: "Creative Side", Maturity: graph.Float64(2.6), Role: "Victim", History: "Victim→Creator"},
		},
		Edges: []graph.EdgeRecord{
			{SourceID: "1", TargetID: "2", Polarity: -0.4, LightShadow: "shadow", Role: "Victim-Persecutor", Description: "harsh"},
		},
		Prompts: []store.Prompt{
			{ID: "p-1", Text: "My inner critic attacks my creative side", CreatedAt: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)},
		},
	}
}

func TestEncodeDecode(t *testing.T) {
	var buf bytes.Buffer
	header, err := Encode(&buf, testSnapshot())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if header.NodeCount != 2 || header.EdgeCount != 1 || header.PromptCount != 1 {
		t.Errorf("header counts = %+v", header)
	}
	if !strings.HasPrefix(header.Checksum, "sha256:") {
		t.Errorf("checksum = %q", header.Checksum)
	}

	// The first line is plain JSON so tools can inspect it without gunzip.
	firstLine, _, _ := strings.Cut(buf.String(), "\n")
	if !strings.Contains(firstLine, `"version":1`) || !strings.Contains(firstLine, `"node_count":2`) {
		t.Errorf("header line = %q", firstLine)
	}

	snap, decoded, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Checksum != header.Checksum {
		t.Errorf("decoded checksum = %q", decoded.Checksum)
	}
	if len(snap.Nodes) != 2 || snap.Nodes[1].History != "Victim→Creator" || *snap.Nodes[1].Maturity != 2.6 {
		t.Errorf("nodes = %+v", snap.Nodes)
	}
	if snap.Edges[0].Polarity != -0.4 || snap.Edges[0].LightShadow != "shadow" {
		t.Errorf("edge = %+v", snap.Edges[0])
	}
	if snap.Prompts[0].Text != "My inner critic attacks my creative side" {
		t.Errorf("prompt = %+v", snap.Prompts[0])
	}
}

func TestDecode_Errors(t *testing.T) {
	var good bytes.Buffer
	if _, err := Encode(&good, testSnapshot()); err != nil {
		t.Fatal(err)
	}
	data := good.Bytes()
	headerEnd := bytes.IndexByte(data, '\n')

	corrupted := append([]byte(nil), data...)
	corrupted[len(corrupted)-5] ^= 0xff

	tests := []struct {
		name    string
		input   []byte
		wantErr string
	}{
		{"empty", nil, "reading header line"},
		{"not json", []byte("hello\n"), "parsing header"},
		{"wrong version", []byte(`{"version":9}` + "\n"), "unsupported snapshot version 9"},
		{"corrupted payload", corrupted, "checksum mismatch"},
		{"truncated payload", data[:headerEnd+10], "checksum mismatch"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode(bytes.NewReader(tt.input))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestWriteFileAndVerify(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "snap"+fileExt)
	if _, err := WriteFile(path, testSnapshot()); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("permissions = %o, want 600", perm)
	}

	if err := VerifyChecksum(path); err != nil {
		t.Errorf("VerifyChecksum: %v", err)
	}
	header, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if !header.CreatedAt.Equal(testSnapshot().CreatedAt) {
		t.Errorf("created_at = %v", header.CreatedAt)
	}

	// Flip a payload byte on disk.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	data[len(data)-1] ^= 0x01
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}
	if err := VerifyChecksum(path); err == nil || !strings.Contains(err.Error(), "checksum mismatch") {
		t.Errorf("expected checksum mismatch, got %v", err)
	}
	if _, _, err := ReadFile(path); err == nil {
		t.Error("ReadFile accepted a corrupted snapshot")
	}
}

func TestReadFile_Missing(t *testing.T) {
	if _, _, err := ReadFile(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing file")
	}
}
