package config

import (
	"errors"
	"strconv"
	"strings"

	"github.com/thoreinstein/bax/internal/archive"
)

// Validation errors for configuration fields.
var (
	// ErrVersionTooLow indicates the version field is below the minimum.
	ErrVersionTooLow = errors.New("version must be >= 1")

	// ErrInvalidCompression indicates an unrecognized compression codec name.
	ErrInvalidCompression = errors.New("invalid compression codec")

	// ErrInvalidIgnoreFile indicates the ignore_file value is not a bare
	// file name.
	ErrInvalidIgnoreFile = errors.New("ignore_file must be a bare file name")

	// ErrInvalidChunkSize indicates a non-positive chunk size.
	ErrInvalidChunkSize = errors.New("chunk_size must be positive")

	// ErrInvalidWorkerCount indicates a checksum worker count below one.
	ErrInvalidWorkerCount = errors.New("checksum_workers must be >= 1")
)

// Validate checks a Config for validity.
// Returns nil if valid, or a slice of validation errors.
func Validate(cfg *Config) []error {
	if cfg == nil {
		return []error{errors.New("config is nil")}
	}

	var errs []error

	if cfg.Version < 1 {
		errs = append(errs, ErrVersionTooLow)
	}

	if _, err := archive.ParseCodec(cfg.Compression); err != nil {
		errs = append(errs, &FieldError{
			Field: "compression",
			Value: cfg.Compression,
			Err:   ErrInvalidCompression,
		})
	}

	// An empty ignore_file is valid and disables rule file loading.
	if strings.ContainsAny(cfg.IgnoreFile, `/\`) {
		errs = append(errs, &FieldError{
			Field: "ignore_file",
			Value: cfg.IgnoreFile,
			Err:   ErrInvalidIgnoreFile,
		})
	}

	if cfg.ChunkSize <= 0 {
		errs = append(errs, &FieldError{
			Field: "chunk_size",
			Value: strconv.Itoa(cfg.ChunkSize),
			Err:   ErrInvalidChunkSize,
		})
	}

	if cfg.ChecksumWorkers < 1 {
		errs = append(errs, &FieldError{
			Field: "checksum_workers",
			Value: strconv.Itoa(cfg.ChecksumWorkers),
			Err:   ErrInvalidWorkerCount,
		})
	}

	return errs
}

// FieldError represents a validation error for a specific config field.
type FieldError struct {
	Field string
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Err.Error() + ": " + e.Value
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
