package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/model"
)

func TestZipPrefix(t *testing.T) {
	assert.Equal(t, "787", zipPrefix("78701"))
	assert.Equal(t, "787", zipPrefix(" 78701-1234 "))
	assert.Equal(t, "", zipPrefix("78"))
	assert.Equal(t, "", zipPrefix(""))
}

func TestSplitRegions(t *testing.T) {
	assert.Equal(t, []string{}, splitRegions(""))
	assert.Equal(t, []string{"Central", "North"}, splitRegions("Central, North,"))
	assert.Equal(t, "Central,North", joinRegions([]string{"Central", "North"}))
}

func TestFilterRegion(t *testing.T) {
	partners := []model.PartnerAdConfig{
		{PartnerID: "a", Regions: []string{"Central"}},
		{PartnerID: "b", Regions: []string{"North", "Coastal"}},
		{PartnerID: "c"},
	}
	got := filterRegion(append([]model.PartnerAdConfig(nil), partners...), "coastal")
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].PartnerID)

	assert.Len(t, filterRegion(partners, ""), 3)
}

func TestOpen_Validation(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: DriverSQLite})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dsn is required")

	_, err = Open(context.Background(), Options{Driver: "mysql", DSN: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported driver")
}

func TestOpen_SQLite(t *testing.T) {
	s, err := Open(context.Background(), Options{Driver: DriverSQLite, DSN: t.TempDir() + "/open.db"})
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Ping(context.Background()))
}
