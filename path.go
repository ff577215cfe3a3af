package tzbaker

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

const (
	// MaxPathLength is the maximum number of components in a key path.
	MaxPathLength = 10

	// Hardened marks a hardened path component.
	Hardened uint32 = 0x80000000
)

// Path is a hierarchical key path. An empty path is only meaningful as the
// "currently authorized key" sentinel of AUTHORIZE_BAKING.
type Path []uint32

// PathWithCurve pairs a path with the curve its key lives on.
type PathWithCurve struct {
	Curve Curve `cbor:"1,keyasint"`
	Path  Path  `cbor:"2,keyasint"`
}

// ParsePath reads a path in wire form (one length byte followed by that many
// big-endian components) and returns it with the number of bytes consumed.
func ParsePath(in []byte) (Path, int, error) {
	if len(in) < 1 {
		return nil, 0, fmt.Errorf("%w: missing path length", ErrWrongLength)
	}

	n := int(in[0])
	if n == 0 {
		return nil, 0, fmt.Errorf("%w: empty path", ErrWrongLength)
	}
	if n > MaxPathLength {
		return nil, 0, fmt.Errorf("%w: path has %d components", ErrWrongLength, n)
	}

	size := 1 + 4*n
	if len(in) < size {
		return nil, 0, fmt.Errorf("%w: path needs %d bytes, got %d", ErrWrongLength, size, len(in))
	}

	path := make(Path, n)
	for i := range path {
		path[i] = binary.BigEndian.Uint32(in[1+4*i:])
	}

	return path, size, nil
}

// ParseExactPath is ParsePath for payloads that must contain nothing but the
// path.
func ParseExactPath(in []byte) (Path, error) {
	path, n, err := ParsePath(in)
	if err != nil {
		return nil, err
	}
	if n != len(in) {
		return nil, fmt.Errorf("%w: %d trailing bytes after path", ErrWrongLength, len(in)-n)
	}
	return path, nil
}

// Bytes returns the wire form of the path.
func (p Path) Bytes() []byte {
	out := make([]byte, 1, 1+4*len(p))
	out[0] = byte(len(p))
	for _, c := range p {
		out = binary.BigEndian.AppendUint32(out, c)
	}
	return out
}

func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// String renders the path as m/44'/1729'/0'/0'.
func (p Path) String() string {
	var b strings.Builder
	b.WriteString("m")
	for _, c := range p {
		b.WriteByte('/')
		b.WriteString(strconv.FormatUint(uint64(c&^Hardened), 10))
		if c&Hardened != 0 {
			b.WriteByte('\'')
		}
	}
	return b.String()
}

// ParsePathString parses the textual m/44'/1729'/0'/0' form.
func ParsePathString(s string) (Path, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) == 0 || parts[0] != "m" {
		return nil, fmt.Errorf("path must start with m: %q", s)
	}

	path := make(Path, 0, len(parts)-1)
	for _, part := range parts[1:] {
		hardened := strings.HasSuffix(part, "'") || strings.HasSuffix(part, "h")
		part = strings.TrimRight(part, "'h")

		v, err := strconv.ParseUint(part, 10, 31)
		if err != nil {
			return nil, fmt.Errorf("path component %q: %w", part, err)
		}

		c := uint32(v)
		if hardened {
			c |= Hardened
		}
		path = append(path, c)
	}

	if len(path) > MaxPathLength {
		return nil, fmt.Errorf("%w: path has %d components", ErrWrongLength, len(path))
	}

	return path, nil
}

func (p PathWithCurve) Clone() PathWithCurve {
	return PathWithCurve{Curve: p.Curve, Path: append(Path(nil), p.Path...)}
}

func (p PathWithCurve) Equal(other PathWithCurve) bool {
	return p.Curve == other.Curve && p.Path.Equal(other.Path)
}

// IsSet reports whether the pair names a key at all.
func (p PathWithCurve) IsSet() bool {
	return p.Curve != CurveUnset && len(p.Path) > 0
}

func (p PathWithCurve) String() string {
	return p.Curve.String() + " " + p.Path.String()
}
