package trajectory

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// BinaryExt is the file extension of compressed binary snapshots.
const BinaryExt = ".trj"

// WriteBinary writes s as msgpack compressed with zstd.
func WriteBinary(w io.Writer, s Snapshot) error {
	if s.Version == "" {
		s.Version = Version
	}

	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}
	defer zw.Close()

	if err := msgpack.NewEncoder(zw).Encode(s); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to close zstd writer: %w", err)
	}
	return nil
}

// ReadBinary decodes a snapshot written by WriteBinary. Corrupt input
// yields ErrMalformedSnapshot.
func ReadBinary(r io.Reader) (Snapshot, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer zr.Close()

	var s Snapshot
	if err := msgpack.NewDecoder(zr).Decode(&s); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	for i := range s.Waypoints {
		if s.Waypoints[i].Connections == nil {
			s.Waypoints[i].Connections = []float64{}
		}
		if !s.Waypoints[i].Type.Valid() {
			return Snapshot{}, fmt.Errorf("%w: waypoint %d has type %q", ErrMalformedSnapshot, i+1, s.Waypoints[i].Type)
		}
	}
	return s, nil
}
