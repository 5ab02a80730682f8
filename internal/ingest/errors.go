package ingest

import (
	"errors"

	"github.com/Faultbox/cadview/internal/dwg"
	"github.com/Faultbox/cadview/internal/kernel"
	"github.com/Faultbox/cadview/pkg/formats"
)

// Ingestion errors. Kernel and format errors are re-exported so callers can
// classify every outcome against this package alone.
var (
	ErrUnsupportedFormat     = formats.ErrUnsupported
	ErrOversizeInput         = errors.New("file exceeds the size limit")
	ErrKernelUnavailable     = kernel.ErrUnavailable
	ErrKernelTimeout         = kernel.ErrTimeout
	ErrKernelCallFailed      = kernel.ErrCallFailed
	ErrAborted               = errors.New("ingestion aborted")
	ErrMalformedSource       = errors.New("malformed source document")
	ErrConversionUnavailable = dwg.ErrConverterUnavailable
)

// UserMessage renders err as a short message followed by the technical
// reason. Aborted sessions have no message.
func UserMessage(err error) string {
	if err == nil || errors.Is(err, ErrAborted) {
		return ""
	}
	var short string
	switch {
	case errors.Is(err, ErrUnsupportedFormat):
		short = "Unsupported file type"
	case errors.Is(err, ErrOversizeInput):
		short = "File too large"
	case errors.Is(err, ErrKernelTimeout):
		short = "Processing took too long"
	case errors.Is(err, ErrConversionUnavailable):
		short = "DWG converter tool not found"
	case errors.Is(err, ErrMalformedSource):
		short = "Could not read this file"
	default:
		short = "Failed to load file"
	}
	return short + ": " + err.Error()
}
