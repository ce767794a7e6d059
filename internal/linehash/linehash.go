// Package linehash computes the per-line fingerprints file move detection compares.
package linehash

import (
	"bytes"
	"encoding/hex"
	"io"
	"unicode"

	"lukechampine.com/blake3"
)

// Line returns the blake3-256 hex digest of line with every whitespace rune
// removed. A line holding only whitespace has the empty fingerprint.
func Line(line []byte) string {
	stripped := bytes.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, line)
	if len(stripped) == 0 {
		return ""
	}
	sum := blake3.Sum256(stripped)
	return hex.EncodeToString(sum[:])
}

// Compute fingerprints every line of content. A trailing newline does not start
// an extra line; empty content has no lines.
func Compute(content []byte) []string {
	lines := split(content)
	hashes := make([]string, len(lines))
	for i, l := range lines {
		hashes[i] = Line(l)
	}
	return hashes
}

// ComputeReader reads r fully and fingerprints its lines.
func ComputeReader(r io.Reader) ([]string, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Compute(content), nil
}

// CountLines counts lines the way Compute splits them.
func CountLines(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	n := bytes.Count(content, []byte{'\n'})
	if content[len(content)-1] != '\n' {
		n++
	}
	return n
}

func split(content []byte) [][]byte {
	if len(content) == 0 {
		return nil
	}
	lines := bytes.Split(content, []byte{'\n'})
	if len(lines[len(lines)-1]) == 0 {
		lines = lines[:len(lines)-1]
	}
	return lines
}
