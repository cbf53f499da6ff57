package backup

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// FormatVersion is the snapshot format written by this package.
const FormatVersion = 1

// MaxDecompressedSize caps the decompressed payload (200MB).
const MaxDecompressedSize = 200 * 1024 * 1024

// Header is the plain-text JSON first line of a snapshot file. The
// checksum covers the gzip payload that follows it.
type Header struct {
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	Checksum    string    `json:"checksum"`
	NodeCount   int       `json:"node_count"`
	EdgeCount   int       `json:"edge_count"`
	PromptCount int       `json:"prompt_count"`
}

// Encode writes snap as a header line followed by the gzip-compressed JSON
// payload.
func Encode(w io.Writer, snap *Snapshot) (*Header, error) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshaling payload: %w", err)
	}

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(payload); err != nil {
		return nil, fmt.Errorf("compressing payload: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}

	header := &Header{
		Version:     FormatVersion,
		CreatedAt:   snap.CreatedAt,
		Checksum:    checksum(compressed.Bytes()),
		NodeCount:   len(snap.Nodes),
		EdgeCount:   len(snap.Edges),
		PromptCount: len(snap.Prompts),
	}
	headerBytes, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("marshaling header: %w", err)
	}

	bw := bufio.NewWriter(w)
	bw.Write(headerBytes)
	bw.WriteByte('\n')
	bw.Write(compressed.Bytes())
	if err := bw.Flush(); err != nil {
		return nil, fmt.Errorf("writing snapshot: %w", err)
	}
	return header, nil
}

// Decode reads a snapshot written by Encode, verifying its checksum.
func Decode(r io.Reader) (*Snapshot, *Header, error) {
	br := bufio.NewReader(r)
	header, err := readHeader(br)
	if err != nil {
		return nil, nil, err
	}

	compressed, err := io.ReadAll(br)
	if err != nil {
		return nil, nil, fmt.Errorf("reading compressed payload: %w", err)
	}
	if got := checksum(compressed); got != header.Checksum {
		return nil, nil, fmt.Errorf("checksum mismatch: expected %s, got %s", header.Checksum, got)
	}

	gzr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, nil, fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gzr.Close()

	payload, err := io.ReadAll(io.LimitReader(gzr, MaxDecompressedSize+1))
	if err != nil {
		return nil, nil, fmt.Errorf("decompressing payload: %w", err)
	}
	if int64(len(payload)) > MaxDecompressedSize {
		return nil, nil, fmt.Errorf("decompressed payload exceeds maximum size of %d bytes", MaxDecompressedSize)
	}

	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, nil, fmt.Errorf("parsing snapshot: %w", err)
	}
	return &snap, header, nil
}

// WriteFile encodes snap to path with owner-only permissions.
func WriteFile(path string, snap *Snapshot) (*Header, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	header, err := Encode(f, snap)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("closing file: %w", closeErr)
	}
	if err != nil {
		return nil, err
	}
	return header, nil
}

// ReadFile decodes the snapshot at path.
func ReadFile(path string) (*Snapshot, *Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// ReadHeader reads only the header line of the snapshot at path.
func ReadHeader(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()
	return readHeader(bufio.NewReader(f))
}

// VerifyChecksum checks the payload of the snapshot at path against its
// header without decompressing it.
func VerifyChecksum(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	header, err := readHeader(br)
	if err != nil {
		return err
	}
	h := sha256.New()
	if _, err := io.Copy(h, br); err != nil {
		return fmt.Errorf("reading compressed payload: %w", err)
	}
	if got := "sha256:" + hex.EncodeToString(h.Sum(nil)); got != header.Checksum {
		return fmt.Errorf("checksum mismatch: expected %s, got %s", header.Checksum, got)
	}
	return nil
}

func readHeader(br *bufio.Reader) (*Header, error) {
	line, err := br.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("reading header line: %w", err)
	}
	var header Header
	if err := json.Unmarshal(bytes.TrimSpace(line), &header); err != nil {
		return nil, fmt.Errorf("parsing header: %w", err)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", header.Version)
	}
	return &header, nil
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}
