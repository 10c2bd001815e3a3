package sessioncache

import (
	"context"
	"testing"
	"time"

	"edupage-client/internal/components/chrono"
	"edupage-client/lib/cookiejar"
	"edupage-client/lib/platforms/edupage/core"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func openMemory(t testing.TB) *Cache {
	cache, err := Open(context.Background(), Config{File: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	return cache
}

var snapshot = core.Snapshot{
	Origin: "school42",
	Account: core.Account{
		UserID:    "Student123",
		Type:      "Student",
		Edupage:   "school42",
		Firstname: "Jana",
		Lastname:  "Nováková",
		SessionID: "sess1",
	},
	Cookies: cookiejar.Snapshot{Cookies: []cookiejar.Cookie{
		{Name: "PHPSESSID", Value: "sess1"},
		{Name: "edid", Value: "abc", Attributes: map[string]string{"Path": "/"}, Flags: []string{"HttpOnly"}},
	}},
}

func TestKey(t *testing.T) {
	cases := []struct {
		username string
		edupage  string
		want     string
	}{
		{username: "Jana.Novakova", edupage: "School42", want: "jana.novakova@school42"},
		{username: " jana ", want: "jana"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Key(tc.username, tc.edupage))
	}
}

func TestSaveLoadDelete(t *testing.T) {
	ctx := context.Background()
	cache := openMemory(t)
	key := Key("jana", "school42")

	_, found, err := cache.Load(ctx, key)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, cache.Save(ctx, key, snapshot))

	loaded, found, err := cache.Load(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	if diff := cmp.Diff(snapshot, loaded); diff != "" {
		t.Fatalf("loaded snapshot differs (-want +got):\n%s", diff)
	}

	require.NoError(t, cache.Delete(ctx, key))
	_, found, err = cache.Load(ctx, key)
	require.NoError(t, err)
	require.False(t, found)
}

func TestLoadFromDatabase(t *testing.T) {
	ctx := context.Background()
	clock := chrono.NewFixedImpl(time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC))
	first := openMemory(t)
	first.time = clock

	key := Key("jana", "school42")
	require.NoError(t, first.Save(ctx, key, snapshot))

	updated := snapshot
	updated.Origin = "school7"
	clock.Advance(time.Hour)
	require.NoError(t, first.Save(ctx, key, updated))

	// a second cache on the same database starts with nothing in memory
	second, err := New(ctx, first.db, clock)
	require.NoError(t, err)

	loaded, found, err := second.Load(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "school7", loaded.Origin)
	require.Equal(t, snapshot.Cookies, loaded.Cookies)

	at, err := second.UpdatedAt(ctx, key)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, time.March, 4, 11, 0, 0, 0, time.UTC), at)

	never, err := second.UpdatedAt(ctx, "peter")
	require.NoError(t, err)
	require.True(t, never.IsZero())
}

func TestOpenWithoutTarget(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	require.Error(t, err)
}
