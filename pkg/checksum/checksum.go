// Package checksum fingerprints the manifest files a run was built from,
// so stored runs can tell whether their inputs changed.
package checksum

import (
	"fmt"
	"hash/crc32"
	"io"
	"os"
)

// FileChecksum represents a file's checksum and metadata
type FileChecksum struct {
	Path      string
	CRC32     uint32
	SizeBytes int64
}

// ComputeFile computes the CRC32 checksum for a single file
func ComputeFile(path string) (*FileChecksum, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	hash := crc32.NewIEEE()
	if _, err := io.Copy(hash, file); err != nil {
		return nil, fmt.Errorf("failed to compute checksum: %w", err)
	}

	return &FileChecksum{
		Path:      path,
		CRC32:     hash.Sum32(),
		SizeBytes: info.Size(),
	}, nil
}

// ComputeFiles computes checksums for every path, keeping their order
func ComputeFiles(paths []string) ([]*FileChecksum, error) {
	checksums := make([]*FileChecksum, 0, len(paths))
	for _, path := range paths {
		cs, err := ComputeFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to compute checksum for %s: %w", path, err)
		}
		checksums = append(checksums, cs)
	}
	return checksums, nil
}

// Fingerprint combines file checksums into one eight-digit hex string.
// It depends on the contents and order of the files, not on their paths.
func Fingerprint(checksums []*FileChecksum) string {
	hash := crc32.NewIEEE()
	for _, cs := range checksums {
		fmt.Fprintf(hash, "%08x %d\n", cs.CRC32, cs.SizeBytes)
	}
	return fmt.Sprintf("%08x", hash.Sum32())
}

// FormatSize formats bytes in human-readable format
func FormatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
