package cache

import (
	"testing"
	"time"
)

// hashIP feeds Redis keys, so it must be stable per address, fixed
// width, and collision-free across the addresses that matter here.
func TestHashIP(t *testing.T) {
	t.Parallel()

	addrs := []string{
		"192.168.1.1",
		"192.168.1.2",
		"127.0.0.1",
		"::1",
		"2001:0db8:85a3:0000:0000:8a2e:0370:7334",
		"8.8.8.8",
	}

	seen := make(map[string]string, len(addrs))
	for _, addr := range addrs {
		h := hashIP(addr)
		if len(h) != 16 {
			t.Errorf("hashIP(%q) length = %d, want 16", addr, len(h))
		}
		if h != hashIP(addr) {
			t.Errorf("hashIP(%q) is not deterministic", addr)
		}
		if prev, ok := seen[h]; ok {
			t.Errorf("hashIP collision: %q and %q both map to %s", prev, addr, h)
		}
		seen[h] = addr
	}
}

func TestSummaryKey(t *testing.T) {
	t.Parallel()

	from := time.Date(2026, 1, 1, 10, 30, 0, 0, time.UTC)
	to := time.Date(2026, 3, 31, 23, 59, 59, 0, time.UTC)

	tests := []struct {
		name     string
		orgID    string
		from     *time.Time
		to       *time.Time
		expected string
	}{
		{"open range", "org-1", nil, nil, "summary:org-1:-:-"},
		{"from only", "org-1", &from, nil, "summary:org-1:2026-01-01:-"},
		{"to only", "org-1", nil, &to, "summary:org-1:-:2026-03-31"},
		{"full range", "org-1", &from, &to, "summary:org-1:2026-01-01:2026-03-31"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := summaryKey(tt.orgID, tt.from, tt.to); got != tt.expected {
				t.Errorf("summaryKey() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestSummaryKey_TimeOfDayIgnored(t *testing.T) {
	t.Parallel()

	morning := time.Date(2026, 2, 14, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 2, 14, 20, 0, 0, 0, time.UTC)

	if summaryKey("org-1", &morning, nil) != summaryKey("org-1", &evening, nil) {
		t.Error("Same date at different times should map to the same key")
	}
}

func TestSummaryKey_OrgsDoNotCollide(t *testing.T) {
	t.Parallel()

	if summaryKey("org-a", nil, nil) == summaryKey("org-b", nil, nil) {
		t.Error("Different orgs must have distinct summary keys")
	}
}
