package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNormalizeLicenseKey(t *testing.T) {
	key, err := NormalizeLicenseKey("  ab12-cd34-ef56-gh78 ")
	require.NoError(t, err)
	require.Equal(t, "AB12-CD34-EF56-GH78", key)

	for _, input := range []string{
		"",
		"AB12CD34EF56GH78",
		"AB12-CD34-EF56",
		"AB1!-CD34-EF56-GH78",
		"AB123-CD34-EF56-GH78",
	} {
		_, err := NormalizeLicenseKey(input)
		require.ErrorIs(t, err, ErrInvalidFormat, "input %q", input)
	}
}

func TestNormalizeDomain(t *testing.T) {
	cases := map[string]string{
		"HTTPS://Example.com/path":      "example.com",
		"http://shop.example.com/":      "shop.example.com",
		"example.com:8443/":             "example.com:8443",
		"Example.COM":                   "example.com",
		"localhost:3000":                "localhost:3000",
		"127.0.0.1":                     "127.0.0.1",
		"sub.domain.example.co.uk/a/b/": "sub.domain.example.co.uk",
	}
	for input, want := range cases {
		got, err := NormalizeDomain(input)
		require.NoError(t, err, "input %q", input)
		require.Equal(t, want, got)
	}

	for _, input := range []string{"", "no spaces allowed here", "ftp://example.com", "-bad.example.com", "justoneword"} {
		_, err := NormalizeDomain(input)
		require.ErrorIs(t, err, ErrInvalidFormat, "input %q", input)
	}
}

func TestDaysRemaining(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.Equal(t, 0, DaysRemaining(now, nil))

	past := now.Add(-time.Hour)
	require.Equal(t, 0, DaysRemaining(now, &past))

	tenDays := now.Add(10 * 24 * time.Hour)
	require.Equal(t, 10, DaysRemaining(now, &tenDays))

	// Partial days round up.
	almostEleven := now.Add(10*24*time.Hour + time.Minute)
	require.Equal(t, 11, DaysRemaining(now, &almostEleven))
}

func TestIsExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.False(t, IsExpired(now, nil))

	future := now.Add(time.Hour)
	require.False(t, IsExpired(now, &future))

	past := now.Add(-time.Second)
	require.True(t, IsExpired(now, &past))

	require.False(t, IsExpired(now, &now))
}

func TestMaskEmail(t *testing.T) {
	require.Equal(t, "jo***@example.com", MaskEmail("john@example.com"))
	require.Equal(t, "a***@example.com", MaskEmail("a@example.com"))
	require.Equal(t, "***", MaskEmail("not-an-email"))
	require.Equal(t, "***", MaskEmail(""))
}

func TestGenerateKeyShape(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		key, err := GenerateKey()
		require.NoError(t, err)

		normalized, err := NormalizeLicenseKey(key)
		require.NoError(t, err)
		require.Equal(t, key, normalized)
		require.False(t, seen[key], "duplicate generated key %s", key)
		seen[key] = true
	}
}
