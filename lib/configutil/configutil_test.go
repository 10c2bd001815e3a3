package configutil

import (
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Username string            `json:"username"`
	Edupage  string            `json:"edupage"`
	Retries  int               `json:"retries"`
	Headers  map[string]string `json:"headers"`
}

func writeFiles(t *testing.T, files map[string]string) afero.Fs {
	fs := afero.NewMemMapFs()
	for name, contents := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(contents), 0o644))
	}
	return fs
}

func TestReadConfig(t *testing.T) {
	cases := []struct {
		name  string
		files map[string]string
		want  testConfig
		err   error
	}{
		{
			name: "base only",
			files: map[string]string{
				"/cfg/edupage.json5": `{
					// comments and trailing commas are fine
					username: "jana",
					edupage: "school42",
					retries: 2,
				}`,
			},
			want: testConfig{Username: "jana", Edupage: "school42", Retries: 2},
		},
		{
			name: "local overrides non-zero fields",
			files: map[string]string{
				"/cfg/edupage.json5":       `{username: "jana", edupage: "school42", retries: 2}`,
				"/cfg/edupage.local.json5": `{edupage: "school7", headers: {"x-debug": "1"}}`,
			},
			want: testConfig{
				Username: "jana",
				Edupage:  "school7",
				Retries:  2,
				Headers:  map[string]string{"x-debug": "1"},
			},
		},
		{
			name: "local only",
			files: map[string]string{
				"/cfg/edupage.local.json5": `{username: "peter"}`,
			},
			want: testConfig{Username: "peter"},
		},
		{
			name:  "nothing",
			files: map[string]string{"/cfg/other.json5": `{}`},
			err:   os.ErrNotExist,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fs := writeFiles(t, tc.files)
			got, err := ReadConfigFs[testConfig](fs, "/cfg/edupage.json5")
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestReadConfigSyntaxError(t *testing.T) {
	fs := writeFiles(t, map[string]string{"/cfg/edupage.json5": `{username: }`})
	_, err := ReadConfigFs[testConfig](fs, "/cfg/edupage.json5")
	require.Error(t, err)
	require.NotErrorIs(t, err, os.ErrNotExist)
	require.Contains(t, err.Error(), "/cfg/edupage.json5")
}

func TestReadRecursively(t *testing.T) {
	fs := writeFiles(t, map[string]string{
		"/home/jana/edupage.json5":         `{username: "outer"}`,
		"/home/jana/work/repo/other.json5": `{}`,
		"/telemetry.json5":                 `{username: "root"}`,
	})
	require.NoError(t, fs.MkdirAll("/home/jana/work/repo/cmd", 0o755))

	got, err := ReadRecursivelyFs[testConfig](fs, "/home/jana/work/repo/cmd", "edupage.json5")
	require.NoError(t, err)
	require.Equal(t, "outer", got.Username)

	got, err = ReadRecursivelyFs[testConfig](fs, "/home/jana/work", "telemetry.json5")
	require.NoError(t, err)
	require.Equal(t, "root", got.Username)

	_, err = ReadRecursivelyFs[testConfig](fs, "/home/jana/work", "missing.json5")
	require.ErrorIs(t, err, os.ErrNotExist)
}
