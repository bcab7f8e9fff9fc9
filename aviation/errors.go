// aviation/errors.go
// Copyright(c) 2025 navlog contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import "errors"

var (
	ErrAmbiguous        = errors.New("Ambiguous identifier")
	ErrNotFound         = errors.New("Not in database")
	ErrInvalidCIFP      = errors.New("Invalid CIFP record")
	ErrUnsupportedCIFP  = errors.New("Unsupported CIFP source")
	ErrNoCIFPInArchive  = errors.New("No CIFP file in archive")
	ErrAirportNoInfo    = errors.New("Airport information unavailable")
	ErrUnknownDeparture = errors.New("Unknown departure")
)
