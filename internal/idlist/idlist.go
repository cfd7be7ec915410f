// Package idlist reads the plain-text request lists: one non-negative
// 64-bit OSM element ID per line.
package idlist

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ParseFile reads a list of element IDs from path. Blank lines are skipped;
// any other line that is not a non-negative integer is an error naming the
// line number. Order is preserved and duplicates are collapsed to their
// first occurrence.
func ParseFile(path string) ([]int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ids, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ids, nil
}

// Parse reads IDs from r with the same rules as ParseFile.
func Parse(r io.Reader) ([]int64, error) {
	var ids []int64
	seen := make(map[int64]bool)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		id, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid id %q: %w", lineNo, line, err)
		}
		if id < 0 {
			return nil, fmt.Errorf("line %d: id must be non-negative, got %d", lineNo, id)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return ids, nil
}
