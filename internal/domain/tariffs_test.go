package domain

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTariffs(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tariffs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTariffsOverride(t *testing.T) {
	orig := TierAllowances[TierLite]
	t.Cleanup(func() { TierAllowances[TierLite] = orig })

	path := writeTariffs(t, `
tiers:
  - name: Lite
    chat_full: 30
    image: 20
    price_rub: 600
`)

	require.NoError(t, LoadTariffs(path))

	a, ok := GetAllowance(TierLite)
	require.True(t, ok)
	assert.Equal(t, Quota(30), a.ChatFull)
	assert.Equal(t, Quota(20), a.Image)
	assert.Equal(t, 600, a.PriceRUB)

	// Untouched tiers keep their defaults.
	smart, _ := GetAllowance(TierSmart)
	assert.Equal(t, Quota(50), smart.ChatFull)
}

func TestLoadTariffsRejectsBadInput(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{"unknown tier", "tiers:\n  - name: Platinum\n    price_rub: 100\n"},
		{"free tier not purchasable", "tiers:\n  - name: Free\n    price_rub: 100\n"},
		{"missing price", "tiers:\n  - name: Lite\n    chat_full: 10\n"},
		{"negative allowance", "tiers:\n  - name: Lite\n    chat_full: -1\n    price_rub: 100\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, LoadTariffs(writeTariffs(t, tc.content)))
		})
	}
}
