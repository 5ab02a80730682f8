// Package dwg converts DWG drawings to DXF through an external converter,
// either a conversion endpoint or a locally installed command-line tool.
package dwg

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Conversion errors. ErrConverterUnavailable means no converter tool could
// be reached at all, as opposed to a converter rejecting the input.
var (
	ErrConverterUnavailable = errors.New("DWG converter tool not found")
	ErrConversionFailed     = errors.New("DWG conversion failed")
)

// Converter turns DWG bytes into DXF bytes.
type Converter interface {
	Convert(ctx context.Context, name string, data []byte) ([]byte, error)
}

// Chain tries converters in order, moving on only while they report
// ErrConverterUnavailable.
type Chain []Converter

// Convert implements Converter.
func (c Chain) Convert(ctx context.Context, name string, data []byte) ([]byte, error) {
	if len(c) == 0 {
		return nil, fmt.Errorf("%w: no converter configured", ErrConverterUnavailable)
	}
	var last error
	for _, conv := range c {
		out, err := conv.Convert(ctx, name, data)
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, ErrConverterUnavailable) {
			return nil, err
		}
		last = err
	}
	return nil, last
}

// WithTimeout bounds every conversion by c to d. A zero d returns c.
func WithTimeout(c Converter, d time.Duration) Converter {
	if d <= 0 {
		return c
	}
	return timeoutConverter{c, d}
}

type timeoutConverter struct {
	Converter
	d time.Duration
}

func (t timeoutConverter) Convert(ctx context.Context, name string, data []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	out, err := t.Converter.Convert(ctx, name, data)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: timed out after %v", ErrConversionFailed, t.d)
	}
	return out, err
}
