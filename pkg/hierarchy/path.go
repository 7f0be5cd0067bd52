// Package hierarchy computes materialized test item paths. A path is the
// dot-joined chain of ancestor identifiers ending with the item's own id.
// Segments are never renumbered or compacted once assigned.
package hierarchy

import (
	"fmt"
	"strconv"
	"strings"
)

// Separator joins path segments.
const Separator = "."

// RootPath returns the path of a root item.
func RootPath(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ChildPath returns the path of a child with the given id under parentPath.
func ChildPath(parentPath string, id int64) (string, error) {
	if parentPath == "" {
		return "", fmt.Errorf("parent path is empty")
	}

	return parentPath + Separator + strconv.FormatInt(id, 10), nil
}

// Parse splits a path into its identifiers, root first.
func Parse(path string) ([]int64, error) {
	if path == "" {
		return nil, fmt.Errorf("path is empty")
	}

	segments := strings.Split(path, Separator)
	ids := make([]int64, 0, len(segments))

	for _, seg := range segments {
		id, err := strconv.ParseInt(seg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid path segment %q in %q: %w", seg, path, err)
		}

		if id <= 0 {
			return nil, fmt.Errorf("invalid path segment %q in %q", seg, path)
		}

		ids = append(ids, id)
	}

	return ids, nil
}

// Ancestors returns the identifiers of every ancestor of the item at path,
// root first, excluding the item itself.
func Ancestors(path string) ([]int64, error) {
	ids, err := Parse(path)
	if err != nil {
		return nil, err
	}

	return ids[:len(ids)-1], nil
}

// Depth returns the number of segments in path. Root items have depth 1.
func Depth(path string) int {
	if path == "" {
		return 0
	}

	return strings.Count(path, Separator) + 1
}

// IsDescendant reports whether the item at path sits beneath ancestorPath.
func IsDescendant(path, ancestorPath string) bool {
	return ancestorPath != "" && strings.HasPrefix(path, ancestorPath+Separator)
}
