// Package formatter builds outbound command payloads in the exact wire
// dialect the push protocol expects, and validates
// them before they are allowed onto a terminal's queue.
package formatter

import (
	"fmt"
	"regexp"

	"github.com/daniel-mekuria/zk-server/internal/domain"
)

// templateRe matches the printable-base64 character class a template blob
// must satisfy.
var templateRe = regexp.MustCompile(`^[A-Za-z0-9+/]*={0,2}$`)

// ValidateBiometric enforces the payload validation rules. On a refusal
// here the fan-out records a "skipped" sync-log row rather than enqueueing
// a command, and the operator API answers 400 without enqueueing anything.
func ValidateBiometric(t domain.BiometricTemplate) error {
	if t.PIN == "" {
		return fmt.Errorf("pin is empty")
	}
	if !t.Type.Valid() {
		return fmt.Errorf("biometric type %d is not in the enumeration", t.Type)
	}
	if t.Template == "" {
		return fmt.Errorf("template is empty")
	}
	if !templateRe.MatchString(t.Template) {
		return fmt.Errorf("template does not match the required character class")
	}
	switch t.Type {
	case domain.BiometricFingerprint:
		if t.Slot < 0 || t.Slot > 9 {
			return fmt.Errorf("fingerprint slot %d out of range 0..9", t.Slot)
		}
	case domain.BiometricFace:
		if t.Slot != 0 {
			return fmt.Errorf("face slot must be 0, got %d", t.Slot)
		}
	}
	return nil
}

// ValidateUser enforces the minimum invariant the formatter can check
// without store access: a PIN is required to build any USERINFO command.
func ValidateUser(u domain.User) error {
	if u.PIN == "" {
		return fmt.Errorf("pin is empty")
	}
	return nil
}
