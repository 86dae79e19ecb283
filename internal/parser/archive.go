package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
)

var (
	zipMagic  = []byte("PK\x03\x04")
	gzipMagic = []byte{0x1f, 0x8b}
)

// maxMemberSize caps how much a single archive member may inflate to.
const maxMemberSize = 64 << 20

// openZipMember returns the contents of the first member whose name ends in
// one of the given suffixes. With no suffixes the first member is returned.
func openZipMember(body []byte, suffixes ...string) ([]byte, string, error) {
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, "", fmt.Errorf("open zip: %w", err)
	}
	if len(zr.File) == 0 {
		return nil, "", errors.New("empty zip archive")
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !hasSuffixFold(f.Name, suffixes) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, "", fmt.Errorf("open %s: %w", f.Name, err)
		}
		data, err := readCapped(rc)
		rc.Close()
		if err != nil {
			return nil, "", fmt.Errorf("read %s: %w", f.Name, err)
		}
		return data, path.Base(f.Name), nil
	}
	return nil, "", fmt.Errorf("no member matching %v", suffixes)
}

// decompress unwraps a gzip or zip body. Plain bodies are returned as is.
func decompress(body []byte, zipSuffixes ...string) ([]byte, error) {
	switch {
	case bytes.HasPrefix(body, zipMagic):
		data, _, err := openZipMember(body, zipSuffixes...)
		return data, err
	case bytes.HasPrefix(body, gzipMagic):
		zr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("open gzip: %w", err)
		}
		defer zr.Close()
		data, err := readCapped(zr)
		if err != nil {
			return nil, fmt.Errorf("read gzip: %w", err)
		}
		return data, nil
	default:
		return body, nil
	}
}

func readCapped(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxMemberSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxMemberSize {
		return nil, fmt.Errorf("member exceeds %d bytes", maxMemberSize)
	}
	return data, nil
}

func hasSuffixFold(name string, suffixes []string) bool {
	if len(suffixes) == 0 {
		return true
	}
	lower := strings.ToLower(name)
	for _, s := range suffixes {
		if strings.HasSuffix(lower, strings.ToLower(s)) {
			return true
		}
	}
	return false
}
