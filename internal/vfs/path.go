package vfs

import "strings"

// maxSegmentLen bounds individual path segments; exceeding it fails with
// KindNameTooLong. 255 matches the common POSIX NAME_MAX.
const maxSegmentLen = 255

// SplitPath normalizes an opaque byte-string path into its segments: `.`
// is dropped, `..` pops the previous segment (or is dropped at the root),
// and empty segments from repeated `/` are collapsed. A segment containing
// a null byte is rejected with KindInvalidInput.
func SplitPath(path string) ([]string, error) {
	if strings.IndexByte(path, 0) >= 0 {
		return nil, NewError(KindInvalidInput, "path.split")
	}

	raw := strings.Split(path, "/")
	segments := make([]string, 0, len(raw))
	for _, seg := range raw {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(segments) > 0 {
				segments = segments[:len(segments)-1]
			}
			// ".." at the root yields the root: nothing to pop, not an error.
		default:
			if len(seg) > maxSegmentLen {
				return nil, NewError(KindNameTooLong, "path.split")
			}
			segments = append(segments, seg)
		}
	}
	return segments, nil
}

// JoinPath renders segments back into a canonical absolute path string, for
// diagnostics and readlink results.
func JoinPath(segments []string) string {
	return "/" + strings.Join(segments, "/")
}
