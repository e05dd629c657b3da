package domain

import (
	"crypto/rand"
	"math/big"
	"regexp"
	"strings"
	"time"
)

var (
	keyPattern = regexp.MustCompile(`^[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}$`)

	// Permissive host check: hostname labels, IPv4 or localhost, optional port.
	hostPattern = regexp.MustCompile(`^(localhost|\d{1,3}(\.\d{1,3}){3}|[a-z0-9]([a-z0-9-]*[a-z0-9])?(\.[a-z0-9]([a-z0-9-]*[a-z0-9])?)+)(:\d{1,5})?$`)
)

const keyCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NormalizeLicenseKey uppercases and trims the input and checks the
// XXXX-XXXX-XXXX-XXXX shape.
func NormalizeLicenseKey(input string) (string, error) {
	key := strings.ToUpper(strings.TrimSpace(input))
	if !keyPattern.MatchString(key) {
		return "", ErrInvalidFormat
	}
	return key, nil
}

// NormalizeDomain lowercases the input, strips any http(s) scheme, path and
// trailing slash, and keeps only host[:port].
func NormalizeDomain(input string) (string, error) {
	domain := strings.ToLower(strings.TrimSpace(input))
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	if idx := strings.IndexByte(domain, '/'); idx >= 0 {
		domain = domain[:idx]
	}
	if !hostPattern.MatchString(domain) {
		return "", ErrInvalidFormat
	}
	return domain, nil
}

// IsExpired reports whether expiresAt is set and strictly before now.
func IsExpired(now time.Time, expiresAt *time.Time) bool {
	return expiresAt != nil && expiresAt.Before(now)
}

// DaysRemaining returns whole days until expiry (ceiling), or 0 when
// expiresAt is unset or already past.
func DaysRemaining(now time.Time, expiresAt *time.Time) int {
	if expiresAt == nil || !expiresAt.After(now) {
		return 0
	}
	remaining := expiresAt.Sub(now)
	days := int(remaining / (24 * time.Hour))
	if remaining%(24*time.Hour) > 0 {
		days++
	}
	return days
}

// MaskEmail hides the local part except its first two characters, e.g.
// jo***@example.com. Raw customer emails never leave the public API.
func MaskEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return "***"
	}
	local, rest := email[:at], email[at:]
	keep := 2
	if len(local) < keep {
		keep = len(local)
	}
	return local[:keep] + "***" + rest
}

// GenerateKey produces a new XXXX-XXXX-XXXX-XXXX key from a CSPRNG.
func GenerateKey() (string, error) {
	groups := make([]string, 4)
	max := big.NewInt(int64(len(keyCharset)))
	for g := range groups {
		var b strings.Builder
		for i := 0; i < 4; i++ {
			n, err := rand.Int(rand.Reader, max)
			if err != nil {
				return "", err
			}
			b.WriteByte(keyCharset[n.Int64()])
		}
		groups[g] = b.String()
	}
	return strings.Join(groups, "-"), nil
}
