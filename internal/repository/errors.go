// Package repository defines data access interfaces for Fletcher Signer.
package repository

import "errors"

// Repository errors.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate indicates a record with the same identifier exists.
	ErrDuplicate = errors.New("record already exists")
)
