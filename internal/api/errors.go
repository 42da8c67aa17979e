// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package api

import "errors"

// Common API errors
var (
	// ErrUnauthorized indicates a missing or wrong admin password.
	ErrUnauthorized = errors.New("admin password required")

	// ErrUnknownSettingKey indicates a settings write with a key outside
	// the known settings set.
	ErrUnknownSettingKey = errors.New("unknown setting key")
)
