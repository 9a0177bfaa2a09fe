package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/richardwooding/cartsleuth/internal/formats"
)

var (
	// ErrChecksumFormatUnknown indicates that no checksum algorithm produced
	// the value stored in a header.
	ErrChecksumFormatUnknown = errors.New("could not find any valid header checksum format")

	// ErrNoValidFormat indicates that every candidate header layout was
	// rejected.
	ErrNoValidFormat = errors.New("could not find any valid header data format")

	ErrOffsetOutOfBounds = errors.New("header offset out of bounds")
	ErrInvalidCode       = errors.New("invalid game code")
	ErrInvalidRegion     = errors.New("invalid game region")

	// ErrIDChecksum indicates an identifier whose check byte does not match.
	ErrIDChecksum = errors.New("identifier checksum mismatch")

	// ErrIDFamilyCode indicates a 1-Wire identifier with a 0x00 or 0xFF
	// family code.
	ErrIDFamilyCode = errors.New("invalid 1-wire family code")

	ErrUnknownTraceID    = errors.New("unknown trace ID prefix")
	ErrTraceIDWidth      = errors.New("could not determine trace ID bit width")
	ErrInstallIDMismatch = errors.New("private and public install ID values do not match")
	ErrSignaturePadding  = errors.New("signature area is padded with neither 0x00 nor 0xFF")
)

// CandidateError records why a candidate header layout was rejected. These
// errors are recoverable: the detector moves on to the next candidate.
type CandidateError struct {
	Flags formats.HeaderFlags
	Err   error
}

func (e *CandidateError) Error() string {
	return fmt.Sprintf("<%s>: %v", e.Flags, e.Err)
}

func (e *CandidateError) Unwrap() error {
	return e.Err
}

// NoValidFormatError is returned once every candidate layout has been
// rejected. It matches ErrNoValidFormat as well as every candidate's cause.
type NoValidFormatError struct {
	Candidates []*CandidateError
}

func (e *NoValidFormatError) Error() string {
	if len(e.Candidates) == 0 {
		return ErrNoValidFormat.Error()
	}

	reasons := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		reasons[i] = c.Error()
	}
	return fmt.Sprintf("%v (tried %s)", ErrNoValidFormat, strings.Join(reasons, "; "))
}

func (e *NoValidFormatError) Unwrap() []error {
	errs := make([]error, 0, len(e.Candidates)+1)
	errs = append(errs, ErrNoValidFormat)
	for _, c := range e.Candidates {
		errs = append(errs, c)
	}
	return errs
}
