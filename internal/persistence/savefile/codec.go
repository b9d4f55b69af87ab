package savefile

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"

	"rgsim.dev/internal/sim/tuning"
)

// Container selects the DEFLATE framing written by Encode.
type Container string

const (
	ContainerRaw  Container = "raw"
	ContainerZlib Container = "zlib"
)

const defaultMaxPayload = 64 << 20

// Codec converts between save blobs and Saves. The zero value is not
// usable; start from DefaultCodec or NewCodec.
type Codec struct {
	Key       []byte
	Prefix    string
	Suffix    string
	Container Container
	Level     int

	// Strict rejects blobs whose framing differs from Prefix and Suffix.
	// Otherwise the framing bytes are only counted.
	Strict bool

	// MaxPayload bounds the inflated size. Zero means 64 MiB.
	MaxPayload int
}

func DefaultCodec() Codec {
	c, _ := NewCodec(tuning.Default().SaveCodec)
	return c
}

func NewCodec(t tuning.SaveCodec) (Codec, error) {
	c := Codec{
		Key:       []byte(t.Key),
		Prefix:    t.Prefix,
		Suffix:    t.Suffix,
		Container: Container(t.Container),
		Level:     t.Level,
	}
	if len(c.Key) == 0 {
		return Codec{}, errors.New("savefile: empty key")
	}
	switch c.Container {
	case ContainerRaw, ContainerZlib:
	default:
		return Codec{}, fmt.Errorf("savefile: unknown container %q", t.Container)
	}
	return c, nil
}

// Decode parses a textual save blob. Trailing bytes after the last section
// are kept and reported by Save.Warnings.
func (c Codec) Decode(blob string) (*Save, error) {
	payload, err := c.DecodePayload(blob)
	if err != nil {
		return nil, err
	}
	var s Save
	if err := s.UnmarshalBinary(payload); err != nil {
		return nil, err
	}
	return &s, nil
}

// Encode is the inverse of Decode.
func (c Codec) Encode(s *Save) (string, error) {
	payload, err := s.MarshalBinary()
	if err != nil {
		return "", err
	}
	return c.EncodePayload(payload)
}

// DecodePayload unwraps a blob down to its deciphered record stream.
func (c Codec) DecodePayload(blob string) ([]byte, error) {
	if len(c.Key) == 0 {
		return nil, errors.New("savefile: codec has no key")
	}
	blob = strings.TrimSpace(blob)
	np, ns := len(c.Prefix), len(c.Suffix)
	if len(blob) < np+ns {
		return nil, &MalformedSaveError{Stage: StageFraming, Err: fmt.Errorf("blob is %d bytes, shorter than framing", len(blob))}
	}
	if c.Strict {
		if blob[:np] != c.Prefix {
			return nil, &MalformedSaveError{Stage: StageFraming, Err: fmt.Errorf("prefix %q, want %q", blob[:np], c.Prefix)}
		}
		if blob[len(blob)-ns:] != c.Suffix {
			return nil, &MalformedSaveError{Stage: StageFraming, Err: fmt.Errorf("suffix %q, want %q", blob[len(blob)-ns:], c.Suffix)}
		}
	}
	compressed, err := base64.StdEncoding.DecodeString(blob[np : len(blob)-ns])
	if err != nil {
		return nil, &MalformedSaveError{Stage: StageBase64, Err: err}
	}
	payload, err := c.inflate(compressed)
	if err != nil {
		return nil, &MalformedSaveError{Stage: StageInflate, Err: err}
	}
	xorKey(payload, c.Key)
	return payload, nil
}

// EncodePayload enciphers, compresses and frames a record stream.
func (c Codec) EncodePayload(payload []byte) (string, error) {
	if len(c.Key) == 0 {
		return "", errors.New("savefile: codec has no key")
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)
	xorKey(buf, c.Key)

	var out bytes.Buffer
	var zw io.WriteCloser
	var err error
	switch c.Container {
	case ContainerZlib:
		zw, err = zlib.NewWriterLevel(&out, c.Level)
	default:
		zw, err = flate.NewWriter(&out, c.Level)
	}
	if err != nil {
		return "", fmt.Errorf("savefile: deflate: %w", err)
	}
	if _, err := zw.Write(buf); err != nil {
		return "", fmt.Errorf("savefile: deflate: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("savefile: deflate: %w", err)
	}
	return c.Prefix + base64.StdEncoding.EncodeToString(out.Bytes()) + c.Suffix, nil
}

// inflate accepts both zlib-wrapped and raw DEFLATE streams. The game writes
// zlib framing; raw streams are what Encode produces by default.
func (c Codec) inflate(b []byte) ([]byte, error) {
	if looksLikeZlib(b) {
		if out, err := c.readAll(func(r io.Reader) (io.ReadCloser, error) { return zlib.NewReader(r) }, b); err == nil {
			return out, nil
		}
	}
	return c.readAll(func(r io.Reader) (io.ReadCloser, error) { return flate.NewReader(r), nil }, b)
}

func (c Codec) readAll(open func(io.Reader) (io.ReadCloser, error), b []byte) ([]byte, error) {
	rc, err := open(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	limit := c.MaxPayload
	if limit <= 0 {
		limit = defaultMaxPayload
	}
	out, err := io.ReadAll(io.LimitReader(rc, int64(limit)+1))
	if err != nil {
		return nil, err
	}
	if len(out) > limit {
		return nil, fmt.Errorf("inflated payload exceeds %d bytes", limit)
	}
	return out, nil
}

// looksLikeZlib checks the RFC 1950 header: deflate method, window size at
// most 32K and a valid check value.
func looksLikeZlib(b []byte) bool {
	if len(b) < 2 {
		return false
	}
	cmf, flg := b[0], b[1]
	return cmf&0x0f == 8 && cmf>>4 <= 7 && (uint16(cmf)<<8|uint16(flg))%31 == 0
}

// xorKey enciphers b in place, cycling key from the first byte of the stream.
func xorKey(b, key []byte) {
	for i := range b {
		b[i] ^= key[i%len(key)]
	}
}

// Digest is the hex sha256 of a blob after surrounding whitespace is removed.
func Digest(blob string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(blob)))
	return hex.EncodeToString(sum[:])
}
