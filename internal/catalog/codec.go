package catalog

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"

	"github.com/klauspost/compress/gzip"
)

// CatalogVersion is the AppStream collection version written on encode.
const CatalogVersion = "0.8"

var gzipMagic = []byte{0x1f, 0x8b}

// Decode parses a catalog document. Gzip-compressed input is detected by its
// magic bytes and decompressed first.
func Decode(data []byte) (*Catalog, error) {
	if IsCompressed(data) {
		raw, err := Decompress(data)
		if err != nil {
			return nil, err
		}
		data = raw
	}

	var cat Catalog
	if err := xml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	return &cat, nil
}

// Encode serializes components as a catalog document for origin and arch.
// Components are ordered by id so identical input yields identical bytes.
func Encode(origin, arch string, components []Component) ([]byte, error) {
	sorted := make([]Component, len(components))
	copy(sorted, components)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ID < sorted[j].ID
	})

	cat := Catalog{
		Version:    CatalogVersion,
		Origin:     origin,
		Arch:       arch,
		Components: sorted,
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(cat); err != nil {
		return nil, fmt.Errorf("encoding catalog: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// IsCompressed reports whether data starts with the gzip magic bytes.
func IsCompressed(data []byte) bool {
	return bytes.HasPrefix(data, gzipMagic)
}

// Compress gzips data. The header carries no name or timestamp.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("compressing catalog: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compressing catalog: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress gunzips data.
func Decompress(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decompressing catalog: %w", err)
	}
	defer zr.Close()

	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompressing catalog: %w", err)
	}
	return out, nil
}
