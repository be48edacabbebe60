// Package verification decides whether a creator proved ownership of a clip
// and issues the codes they are asked to publish.
package verification

import (
	"crypto/rand"
	"strings"
)

const (
	ClipCodePrefix     = "CLIP-"
	AccountCodePrefix  = "USR-"
	ReferralCodePrefix = "REF-"

	codeLength = 8
)

// Crockford base32 without I, L, O and U.
const alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// IsVerified reports whether a clip counts as verified after observing the
// given description. Verification never reverts once granted.
func IsVerified(current bool, assignedCode, description string) bool {
	if current {
		return true
	}
	code := strings.TrimSpace(assignedCode)
	if code == "" {
		return false
	}
	return strings.Contains(strings.ToUpper(description), strings.ToUpper(code))
}

// NewCode returns a fresh per-clip verification code.
func NewCode() (string, error) {
	return newCode(ClipCodePrefix)
}

// NewAccountCode returns an account level code creators can reuse across clips.
func NewAccountCode() (string, error) {
	return newCode(AccountCodePrefix)
}

// NewReferralCode returns a shareable referral code.
func NewReferralCode() (string, error) {
	return newCode(ReferralCodePrefix)
}

func newCode(prefix string) (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, codeLength)
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return prefix + string(out), nil
}
