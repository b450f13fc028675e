package pricelist

import "errors"

var (
	// ErrNotConfigured covers missing prerequisites an administrator has
	// to fix: no media on the template, empty column mapping.
	ErrNotConfigured = errors.New("template not configured")

	// ErrEmptyData means parsing succeeded but produced no line records.
	ErrEmptyData = errors.New("price list contains no data")

	// ErrNotFound is returned for unresolvable template/media/product ids.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateCode is returned by a match run when the template's
	// duplicate-code policy is "reject" and the file repeats a code.
	ErrDuplicateCode = errors.New("duplicate supplier code")
)
