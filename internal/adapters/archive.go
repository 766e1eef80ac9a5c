package adapters

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/mholt/archives"
)

// decompressGzip inflates a gzip-CSV archive body into its raw CSV bytes.
func decompressGzip(ctx context.Context, body []byte) ([]byte, error) {
	gz := archives.Gz{}
	rc, err := gz.OpenReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("adapters: gzip decompress: %w", err)
	}
	defer rc.Close()

	out, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("adapters: read gzip body: %w", err)
	}
	return out, nil
}

// DecompressZipCSV extracts the first CSV member of a zip-CSV archive body.
// Exported so an ExplicitSideAdapter can use it as its Decompress func for
// exchanges (e.g. Binance) that ship explicit-side CSV inside zip rather
// than gzip.
func DecompressZipCSV(ctx context.Context, body []byte) ([]byte, error) {
	zf := archives.Zip{}

	var out []byte
	found := false
	err := zf.Extract(ctx, bytes.NewReader(body), func(ctx context.Context, f archives.FileInfo) error {
		if found || f.IsDir() {
			return nil
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("adapters: open zip member %s: %w", f.NameInArchive, err)
		}
		defer rc.Close()

		data, err := io.ReadAll(rc)
		if err != nil {
			return fmt.Errorf("adapters: read zip member %s: %w", f.NameInArchive, err)
		}
		out = data
		found = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("adapters: zip extract: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("adapters: zip archive had no members")
	}
	return out, nil
}
