package cookiejar

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"edupage-client/internal/components/chrono"
	"edupage-client/internal/components/telemetry"
	"edupage-client/lib/fault"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func fixedJar(t testing.TB) (*Jar, *telemetry.RecorderAPI) {
	t.Helper()
	tel := &telemetry.RecorderAPI{}
	clock := chrono.NewFixedImpl(time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC))
	return New(clock, tel), tel
}

func TestSetReplacesByName(t *testing.T) {
	names := []string{"PHPSESSID", "edid", "a"}
	values := [][2]string{{"1", "2"}, {"old", "new"}, {"", "x"}}

	for _, name := range names {
		for _, pair := range values {
			t.Run(fmt.Sprintf("%s/%s->%s", name, pair[0], pair[1]), func(t *testing.T) {
				jar, _ := fixedJar(t)
				jar.Set(name, pair[0], Options{})
				jar.Set(name, pair[1], Options{})

				c, ok := jar.Get(name)
				require.True(t, ok)
				require.Equal(t, pair[1], c.Value)
				require.Equal(t, 1, jar.Len())
			})
		}
	}
}

func TestSetCookieReplacesAcrossShapes(t *testing.T) {
	jar, _ := fixedJar(t)
	require.NoError(t, jar.SetCookie("PHPSESSID=abc; Path=/"))
	require.NoError(t, jar.SetCookie(&http.Cookie{Name: "PHPSESSID", Value: "def"}))

	c, ok := jar.Get("PHPSESSID")
	require.True(t, ok)
	require.Equal(t, "def", c.Value)
	require.Empty(t, c.Attributes)
}

func TestExpiredCookiesAreInvisible(t *testing.T) {
	jar, _ := fixedJar(t)
	jar.Set("stale", "1", Options{Attributes: map[string]string{"expires": "2024-01-01T00:00:00Z"}})
	jar.Set("fresh", "2", Options{Attributes: map[string]string{"Expires": "2030-01-01T00:00:00Z"}})

	_, ok := jar.Get("stale")
	require.False(t, ok)
	require.False(t, jar.Includes("stale"))
	require.True(t, jar.Includes("fresh"))
	require.Equal(t, "fresh=2; ", jar.String(false))
	require.NotContains(t, jar.String(true), "stale")
}

func TestExpiryIsLazy(t *testing.T) {
	clock := chrono.NewFixedImpl(time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC))
	jar := New(clock, nil)
	require.NoError(t, jar.SetCookie("session=1; Expires=Sat, 01 Jun 2024 13:00:00 GMT"))
	require.True(t, jar.Includes("session"))

	clock.Advance(2 * time.Hour)
	require.False(t, jar.Includes("session"))
	require.True(t, jar.Empty())
}

func TestUnparseableExpiresIsKept(t *testing.T) {
	jar, _ := fixedJar(t)
	jar.Set("odd", "1", Options{Attributes: map[string]string{"Expires": "someday"}})
	require.True(t, jar.Includes("odd"))
}

func TestSerializeRoundTrip(t *testing.T) {
	jar, _ := fixedJar(t)
	jar.Set("a", "1", Options{
		Attributes: map[string]string{"domain": "x.com"},
		Flags:      []string{"secure"},
	})

	serialized := jar.String(true)
	require.Equal(t, "a=1; Domain=x.com; Secure; ", serialized)

	restored, _ := fixedJar(t)
	require.NoError(t, restored.SetCookie(serialized))

	diff := cmp.Diff(jar.Cookies(), restored.Cookies())
	if diff != "" {
		t.Fatal(diff)
	}
}

func TestParse(t *testing.T) {
	cases := []struct {
		raw      string
		expected Cookie
		warnings int
	}{
		{
			raw: "PHPSESSID=abc123; path=/; HttpOnly; SameSite=lax",
			expected: Cookie{
				Name:       "PHPSESSID",
				Value:      "abc123",
				Attributes: map[string]string{"Path": "/", "SameSite": "lax"},
				Flags:      []string{"HttpOnly"},
			},
		},
		{
			raw: "edid=; max-age=60; x-custom=yes",
			expected: Cookie{
				Name:       "edid",
				Value:      "",
				Attributes: map[string]string{"Max-Age": "60", "x-custom": "yes"},
			},
		},
		{
			raw:      "a=1; =oops; Partitioned; secure; Secure",
			expected: Cookie{Name: "a", Value: "1", Flags: []string{"Secure"}},
			warnings: 2,
		},
		{
			raw:      "Secure",
			expected: Cookie{Flags: []string{"Secure"}},
			warnings: 1,
		},
	}

	for _, test := range cases {
		t.Run(test.raw, func(t *testing.T) {
			c, warnings := Parse(test.raw)
			require.Len(t, warnings, test.warnings)
			for _, w := range warnings {
				require.ErrorIs(t, w, fault.ErrValidation)
			}
			diff := cmp.Diff(test.expected, c)
			if diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestMalformedSegmentsAreWarnings(t *testing.T) {
	jar, tel := fixedJar(t)
	require.NoError(t, jar.SetCookie([]string{"a=1; =broken", "b=2"}))

	require.True(t, jar.Includes("a"))
	require.True(t, jar.Includes("b"))
	require.True(t, tel.Has(telemetry.LevelWarning, report_jar_parse))
}

func TestSetCookieShapes(t *testing.T) {
	res := &http.Response{Header: http.Header{}}
	res.Header.Add("Set-Cookie", "PHPSESSID=s1; path=/")
	res.Header.Add("Set-Cookie", "edid=e1")

	req := httptest.NewRequest(http.MethodGet, "https://school42.edupage.org/", nil)
	req.Header.Set("Cookie", "lang=sk; theme=dark")

	cases := []struct {
		name     string
		source   any
		expected []string
	}{
		{name: "response", source: res, expected: []string{"PHPSESSID", "edid"}},
		{name: "request", source: req, expected: []string{"lang", "theme"}},
		{name: "literals", source: []Cookie{{Name: "x", Value: "1"}}, expected: []string{"x"}},
		{name: "snapshot", source: Snapshot{Cookies: []Cookie{{Name: "y", Value: "2"}}}, expected: []string{"y"}},
		{name: "http cookies", source: []*http.Cookie{{Name: "z", Value: "3", Secure: true}}, expected: []string{"z"}},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			jar, _ := fixedJar(t)
			require.NoError(t, jar.SetCookie(test.source))

			var names []string
			for _, c := range jar.Cookies() {
				names = append(names, c.Name)
			}
			require.Equal(t, test.expected, names)
		})
	}
}

func TestSetCookieRejectsUnknownShape(t *testing.T) {
	jar, _ := fixedJar(t)
	err := jar.SetCookie(42)
	require.ErrorIs(t, err, fault.ErrValidation)
	require.True(t, jar.Empty())
}

func TestDelete(t *testing.T) {
	jar, _ := fixedJar(t)
	jar.Set("a", "1", Options{})

	deleted, ok := jar.Delete("a")
	require.True(t, ok)
	require.Equal(t, "a", deleted.Name)

	_, ok = jar.Delete("a")
	require.False(t, ok)
}

func TestWriteTo(t *testing.T) {
	jar, _ := fixedJar(t)
	jar.Set("a", "1", Options{Attributes: map[string]string{"Path": "/"}, Flags: []string{"HttpOnly"}})
	jar.Set("b", "2", Options{})

	recorder := httptest.NewRecorder()
	jar.WriteTo(recorder, true)
	require.Equal(t, []string{"a=1; Path=/; HttpOnly", "b=2"}, recorder.Header().Values("Set-Cookie"))
}

func TestJSON(t *testing.T) {
	jar, _ := fixedJar(t)
	jar.Set("PHPSESSID", "abc", Options{Flags: []string{"Secure"}})

	encoded, err := json.Marshal(jar)
	require.NoError(t, err)

	restored := New(nil, nil)
	require.NoError(t, json.Unmarshal(encoded, restored))

	diff := cmp.Diff(jar.Cookies(), restored.Cookies())
	if diff != "" {
		t.Fatal(diff)
	}
}
