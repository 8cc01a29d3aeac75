// Package serialization implements the .kiln tensor file format: a small
// binary envelope carrying one or more named float32 tensors with a
// SHA-256 checksum over the payload.
//
// Layout (all integers little-endian):
//
//	magic    [4]byte  "KILN"
//	version  u32      currently 1
//	checksum [32]byte SHA-256 of everything after this field
//	count    u32      number of tensors
//	per tensor:
//	    nameLen u32, name []byte
//	    rank    u32, extents [rank]u32
//	    data    [n]f32 in logical row-major order
package serialization

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"

	"github.com/kiln-ml/kiln/internal/device"
	"github.com/kiln-ml/kiln/internal/tensor"
)

// Format constants.
const (
	MagicBytes    = "KILN"
	FormatVersion = 1
	ChecksumSize  = 32 // SHA-256
)

// Format errors.
var (
	ErrBadMagic         = errors.New("serialization: not a .kiln file")
	ErrChecksumMismatch = errors.New("serialization: checksum mismatch")
	ErrVersion          = errors.New("serialization: unsupported format version")
)

// Save writes named tensors to w. Views are written in logical row-major
// order, so a transposed tensor loads back as plain contiguous data.
func Save(w io.Writer, tensors map[string]*tensor.Tensor) error {
	var payload bytes.Buffer

	var count [4]byte
	binary.LittleEndian.PutUint32(count[:], uint32(len(tensors)))
	payload.Write(count[:])

	for name, t := range tensors {
		data, err := t.Data()
		if err != nil {
			return errors.Wrapf(err, "serialization: read tensor %q", name)
		}

		writeU32(&payload, uint32(len(name)))
		payload.WriteString(name)
		writeU32(&payload, uint32(t.Rank()))
		for _, dim := range t.Shape() {
			writeU32(&payload, uint32(dim))
		}
		for _, v := range data {
			writeU32(&payload, math.Float32bits(v))
		}
	}

	if _, err := io.WriteString(w, MagicBytes); err != nil {
		return errors.Wrap(err, "serialization: write magic")
	}
	var version [4]byte
	binary.LittleEndian.PutUint32(version[:], FormatVersion)
	if _, err := w.Write(version[:]); err != nil {
		return errors.Wrap(err, "serialization: write version")
	}
	sum := ComputeChecksum(payload.Bytes())
	if _, err := w.Write(sum[:]); err != nil {
		return errors.Wrap(err, "serialization: write checksum")
	}
	if _, err := w.Write(payload.Bytes()); err != nil {
		return errors.Wrap(err, "serialization: write payload")
	}
	return nil
}

// Load reads a .kiln file and materializes its tensors on ctx.
func Load(ctx *device.Context, r io.Reader) (map[string]*tensor.Tensor, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, errors.Wrap(err, "serialization: read magic")
	}
	if string(magic[:]) != MagicBytes {
		return nil, ErrBadMagic
	}

	var version [4]byte
	if _, err := io.ReadFull(r, version[:]); err != nil {
		return nil, errors.Wrap(err, "serialization: read version")
	}
	if binary.LittleEndian.Uint32(version[:]) != FormatVersion {
		return nil, ErrVersion
	}

	var stored [ChecksumSize]byte
	if _, err := io.ReadFull(r, stored[:]); err != nil {
		return nil, errors.Wrap(err, "serialization: read checksum")
	}

	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "serialization: read payload")
	}
	if err := ValidateChecksum(ComputeChecksum(payload), stored); err != nil {
		return nil, err
	}

	buf := bytes.NewReader(payload)
	count, err := readU32(buf)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*tensor.Tensor, count)
	for i := uint32(0); i < count; i++ {
		nameLen, err := readU32(buf)
		if err != nil {
			return nil, err
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(buf, name); err != nil {
			return nil, errors.Wrap(err, "serialization: read tensor name")
		}

		rank, err := readU32(buf)
		if err != nil {
			return nil, err
		}
		shape := make(tensor.Shape, rank)
		for d := range shape {
			dim, err := readU32(buf)
			if err != nil {
				return nil, err
			}
			shape[d] = int(dim)
		}

		n := shape.NumElements()
		data := make([]float32, n)
		for j := 0; j < n; j++ {
			bits, err := readU32(buf)
			if err != nil {
				return nil, err
			}
			data[j] = math.Float32frombits(bits)
		}

		t, err := tensor.FromSlice(ctx, data, shape)
		if err != nil {
			for _, loaded := range out {
				loaded.Release()
			}
			return nil, err
		}
		out[string(name)] = t
	}
	return out, nil
}

func writeU32(w *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.Write(b[:])
}

func readU32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, errors.Wrap(err, "serialization: truncated payload")
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}
