// Package codec encodes the structured parts of a codebook library: metric
// descriptors embedded in codebook blobs and the library manifest.
//
// Blobs record the name of the codec that wrote their descriptor, so a
// reader picks the matching codec with ByName. Changing Default only
// affects newly written blobs.
package codec

import "fmt"

// Codec encodes and decodes values. Implementations must be safe for
// concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns the built-in codec with the given stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case JSON{}.Name():
		return JSON{}, true
	case GoJSON{}.Name():
		return GoJSON{}, true
	default:
		return nil, false
	}
}

// MustMarshal marshals v with c, or Default when c is nil, and panics on
// error. Intended for tests.
func MustMarshal(c Codec, v any) []byte {
	if c == nil {
		c = Default
	}
	b, err := c.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("codec %s marshal failed: %w", c.Name(), err))
	}
	return b
}
