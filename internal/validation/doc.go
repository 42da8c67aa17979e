// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

/*
Package validation wraps go-playground/validator v10 behind a singleton with
application-specific rules and error translation.

POST request bodies in the api package declare their constraints with struct
tags and call ValidateStruct before touching the database:

	type SubscribeRequest struct {
	    Endpoint    string `json:"endpoint" validate:"required,url"`
	    P256dh      string `json:"p256dh" validate:"required"`
	    Auth        string `json:"auth" validate:"required"`
	    Counties    []int  `json:"counties" validate:"omitempty,dive,county"`
	    MinSeverity int    `json:"min_severity" validate:"min=0,max=5"`
	}

Custom validators:

  - county: the value is a known Trafikverket county number. The official
    numbering has gaps (2, 11, 15, 16 are unused), so range checks are wrong.

Validation failures convert to the shared VALIDATION_ERROR envelope via
ToAPIError, with per-field detail for multi-error responses.
*/
package validation
