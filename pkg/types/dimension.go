// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package types

import (
	"strings"

	vferr "github.com/visualfin/visualfin/pkg/errors"
)

// DimensionPolicy decides what ranking does with a candidate whose
// embedding length differs from the query's.
type DimensionPolicy string

const (
	// DimensionsTolerate scores mismatched candidates as 0 and keeps them.
	DimensionsTolerate DimensionPolicy = "tolerate"
	// DimensionsSkip drops mismatched candidates before scoring.
	DimensionsSkip DimensionPolicy = "skip"
)

// Valid reports whether p is a recognized policy. The empty value is
// valid and means tolerate.
func (p DimensionPolicy) Valid() bool {
	switch p {
	case "", DimensionsTolerate, DimensionsSkip:
		return true
	default:
		return false
	}
}

// ParseDimensionPolicy parses a case-insensitive policy name.
func ParseDimensionPolicy(s string) (DimensionPolicy, error) {
	p := DimensionPolicy(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", vferr.Errorf(vferr.CodeConfigValidateInvalidValue,
			"invalid dimension policy: %q", s)
	}
	if p == "" {
		return DimensionsTolerate, nil
	}
	return p, nil
}
