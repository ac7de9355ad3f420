package upload

import (
	"errors"
	"strings"
)

// Key errors.
var (
	ErrEmptyKey       = errors.New("upload: empty key")
	ErrKeyBackslash   = errors.New("upload: key contains backslash")
	ErrKeyNullByte    = errors.New("upload: key contains null byte")
	ErrKeyEscapesRoot = errors.New("upload: key escapes root via ..")
)

// CleanKey canonicalizes a blob key: leading and repeated slashes are
// dropped and "." segments removed. Keys containing a backslash or NUL,
// or whose ".." segments would leave the root, are rejected.
func CleanKey(key string) (string, error) {
	if strings.Contains(key, "\\") {
		return "", ErrKeyBackslash
	}
	if strings.Contains(key, "\x00") || strings.Contains(strings.ToUpper(key), "%00") {
		return "", ErrKeyNullByte
	}

	var out []string
	for _, seg := range strings.Split(key, "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(out) == 0 {
				return "", ErrKeyEscapesRoot
			}
			out = out[:len(out)-1]
		default:
			out = append(out, seg)
		}
	}
	if len(out) == 0 {
		return "", ErrEmptyKey
	}
	return strings.Join(out, "/"), nil
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
