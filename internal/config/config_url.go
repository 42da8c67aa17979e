// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package config

import (
	"fmt"
	"net/url"
)

// validateHTTPURL validates that a URL is properly formatted for HTTP/HTTPS
// services. Validates: scheme (http/https) and host present. Paths are
// allowed; the Trafikverket query endpoint carries one.
func validateHTTPURL(rawURL, fieldName string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}

	return nil
}

// validateBaseURL validates a public base URL. A trailing slash is allowed;
// query parameters are not, as routes get appended to it.
func validateBaseURL(rawURL, fieldName string) error {
	if err := validateHTTPURL(rawURL, fieldName); err != nil {
		return err
	}

	parsedURL, _ := url.Parse(rawURL)
	if parsedURL.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters, remove: ?%s", fieldName, parsedURL.RawQuery)
	}

	return nil
}

// validateVAPIDSubject validates the VAPID subject claim. The Web Push spec
// requires a mailto: or https: URL identifying the operator.
func validateVAPIDSubject(subject string) error {
	parsedURL, err := url.Parse(subject)
	if err != nil {
		return fmt.Errorf("VAPID_SUBJECT failed to parse: %w", err)
	}

	if parsedURL.Scheme != "mailto" && parsedURL.Scheme != "https" {
		return fmt.Errorf("VAPID_SUBJECT scheme must be mailto or https, got: %s", parsedURL.Scheme)
	}

	return nil
}
