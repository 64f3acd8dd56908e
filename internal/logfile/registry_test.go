package logfile

import (
	"testing"

	"github.com/stretchr/testify/require"

	"logscan/pkg/configdir"
	"logscan/pkg/errs"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	dir, err := configdir.NewFileDirectory(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { dir.Close() })

	require.NoError(t, dir.UpdateCustomerConfig(&configdir.CustomerConfig{
		Customer: "acme",
		LogfileImportConfig: configdir.LogfileImportConfig{
			Logfiles: []configdir.LogfileDefinition{
				{
					Name:  "web",
					Regex: `(?P<time>\S+) (?P<status>\d+)`,
					RowFields: []configdir.Field{
						{ID: 2, Name: "time", Type: configdir.FieldTypeDateTime},
						{ID: 3, Name: "status", Type: configdir.FieldTypeString},
					},
				},
			},
		},
	}))

	return NewRegistry(dir)
}

func TestRegistry_FindKnownAndUnknown(t *testing.T) {
	r := newTestRegistry(t)

	def, ok, err := r.Find("acme", "web")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "web", def.Name)

	_, ok, err = r.Find("acme", "missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRegistry_MustFindNotFound(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.MustFind("acme", "missing")
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.KindNotFound))
}

func TestRegistry_SetRegexUpdatesOnlyRegex(t *testing.T) {
	r := newTestRegistry(t)

	require.NoError(t, r.SetRegex("acme", "web", `(?P<time>\S+) NEW (?P<status>\d+)`))

	def, err := r.MustFind("acme", "web")
	require.NoError(t, err)
	require.Equal(t, `(?P<time>\S+) NEW (?P<status>\d+)`, def.Regex)
	require.Len(t, def.RowFields, 2)
}

func TestRegistry_SetRegexUnknownLogfile(t *testing.T) {
	r := newTestRegistry(t)

	err := r.SetRegex("acme", "missing", "x")
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.KindNotFound))
}
