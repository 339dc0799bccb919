package trajectory

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IsBinaryPath reports whether path names a binary snapshot.
func IsBinaryPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), BinaryExt)
}

// ReadFile loads a snapshot, choosing the format by extension: BinaryExt
// for the compressed binary form, JSON otherwise.
func ReadFile(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	if IsBinaryPath(path) {
		return ReadBinary(bytes.NewReader(data))
	}
	return Parse(data)
}

// WriteFile stores s in the format implied by the extension of path. The
// file is written next to its destination and renamed into place.
func WriteFile(path string, s Snapshot) error {
	var buf bytes.Buffer
	if IsBinaryPath(path) {
		if err := WriteBinary(&buf, s); err != nil {
			return err
		}
	} else {
		data, err := Marshal(s)
		if err != nil {
			return err
		}
		buf.Write(data)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
