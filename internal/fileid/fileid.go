// Package fileid derives stable document and chunk identifiers.
package fileid

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// FileID returns the stable file identifier for a document path: the base name
// without extension, lowercased, with every run of non-alphanumeric characters
// collapsed to a single underscore and edge underscores trimmed. Same file
// name always yields the same ID.
func FileID(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	id := nonAlnum.ReplaceAllString(strings.ToLower(stem), "_")
	return strings.Trim(id, "_")
}

// ChunkID returns the stable chunk identifier "<file_id>_<page>_<ordinal>".
func ChunkID(fileID string, page, ordinal int) string {
	return fmt.Sprintf("%s_%d_%d", fileID, page, ordinal)
}

// ParseChunkID splits a chunk ID back into its (file_id, page, ordinal)
// triple. The file ID may itself contain underscores, so the last two
// underscore-separated segments are taken as page and ordinal and the rest is
// rejoined as the file ID.
func ParseChunkID(id string) (fileID string, page, ordinal int, err error) {
	parts := strings.Split(id, "_")
	if len(parts) < 3 {
		return "", 0, 0, fmt.Errorf("malformed chunk ID %q", id)
	}
	page, err = strconv.Atoi(parts[len(parts)-2])
	if err != nil {
		return "", 0, 0, fmt.Errorf("malformed chunk ID %q: page: %w", id, err)
	}
	ordinal, err = strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return "", 0, 0, fmt.Errorf("malformed chunk ID %q: ordinal: %w", id, err)
	}
	fileID = strings.Join(parts[:len(parts)-2], "_")
	if fileID == "" {
		return "", 0, 0, fmt.Errorf("malformed chunk ID %q: empty file ID", id)
	}
	return fileID, page, ordinal, nil
}
