// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package config

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// PasswordPolicy defines requirements for the admin password. The admin
// password gates destructive operations (settings writes, database reset),
// so weak values are rejected when the password is changed through the API.
type PasswordPolicy struct {
	// MinLength is the minimum password length.
	MinLength int

	// RequireMixedCase requires both upper- and lowercase letters.
	RequireMixedCase bool

	// RequireDigit requires at least one digit.
	RequireDigit bool

	// MaxConsecutiveRepeats is the maximum allowed run of one repeated
	// character (0 = disabled).
	MaxConsecutiveRepeats int

	// ForbidCommonPasswords blocks well-known breached passwords.
	ForbidCommonPasswords bool
}

// AdminPasswordPolicy returns the policy enforced for the admin password.
func AdminPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:             10,
		RequireMixedCase:      true,
		RequireDigit:          true,
		MaxConsecutiveRepeats: 3,
		ForbidCommonPasswords: true,
	}
}

// Validate checks a candidate password against the policy and collects
// every violation, so the API can report all problems at once instead of
// making the operator fix them one by one.
func (p PasswordPolicy) Validate(password string) []string {
	var problems []string

	if len(password) < p.MinLength {
		problems = append(problems,
			fmt.Sprintf("password must be at least %d characters (got %d)", p.MinLength, len(password)))
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if p.RequireMixedCase && (!hasUpper || !hasLower) {
		problems = append(problems, "password must contain both uppercase and lowercase letters")
	}
	if p.RequireDigit && !hasDigit {
		problems = append(problems, "password must contain at least one digit")
	}

	if p.MaxConsecutiveRepeats > 0 && longestRepeatRun(password) > p.MaxConsecutiveRepeats {
		problems = append(problems,
			fmt.Sprintf("password cannot repeat one character more than %d times in a row", p.MaxConsecutiveRepeats))
	}

	if p.ForbidCommonPasswords && isCommonPassword(password) {
		problems = append(problems, "password is too common and easily guessable")
	}

	return problems
}

// ValidateWithError is a convenience wrapper that joins all violations
// into a single error, or returns nil when the password passes.
func (p PasswordPolicy) ValidateWithError(password string) error {
	problems := p.Validate(password)
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// longestRepeatRun returns the length of the longest run of one repeated
// character in the password.
func longestRepeatRun(password string) int {
	if password == "" {
		return 0
	}
	longest, current := 1, 1
	var last rune
	for i, r := range password {
		if i > 0 && r == last {
			current++
			if current > longest {
				longest = current
			}
		} else {
			current = 1
		}
		last = r
	}
	return longest
}

// isCommonPassword checks the candidate against a short list of breached
// and deployment-obvious passwords. Matching is case-insensitive.
func isCommonPassword(password string) bool {
	lower := strings.ToLower(password)
	commonPasswords := map[string]bool{
		"123456":        true,
		"password":      true,
		"123456789":     true,
		"12345678":      true,
		"1234567890":    true,
		"qwerty":        true,
		"abc123":        true,
		"password1":     true,
		"password123":   true,
		"passw0rd":      true,
		"p@ssw0rd":      true,
		"admin":         true,
		"admin123":      true,
		"administrator": true,
		"letmein":       true,
		"welcome":       true,
		"welcome123":    true,
		"changeme":      true,
		"default":       true,
		"secret":        true,
		"test":          true,
		"test123":       true,
		"guest":         true,
		"root":          true,
		"server":        true,
		"server123":     true,
		"111111":        true,
		"000000":        true,
		"654321":        true,
		"123123":        true,
		"qwertyuiop":    true,
		"1q2w3e4r":      true,
		"iloveyou":      true,
		"sommar":        true,
		"sommar123":     true,
		"hemligt":       true,
		"trafik":        true,
		"trafik123":     true,
		"trafikinfo":    true,
		"trafikverket":  true,
		"stockholm":     true,
		"sverige":       true,
		"sverige123":    true,
	}
	return commonPasswords[lower]
}
