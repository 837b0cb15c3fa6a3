package roster

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse_Valid(t *testing.T) {
	t.Parallel()

	members, err := Parse([]byte(`[
		{"id": "sen-0001", "name": "A. Example", "url": "https://example.gov/a", "state": "CA", "chamber": "senate"},
		{"id": "rep-0002", "name": "B. Example", "url": "https://example.gov/b", "state": "NY", "chamber": "house"}
	]`))
	require.NoError(t, err)
	require.Len(t, members, 2)
	require.Equal(t, "sen-0001", members[0].ID)
	require.Equal(t, "house", members[1].Chamber)
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		data string
	}{
		{"empty list", `[]`},
		{"missing id", `[{"name": "x", "url": "https://example.gov"}]`},
		{"missing url", `[{"id": "a", "name": "x"}]`},
		{"duplicate id", `[{"id": "a", "url": "https://example.gov"}, {"id": "a", "url": "https://example.gov/2"}]`},
		{"not JSON", `{{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tc.data))
			require.Error(t, err)
		})
	}
}

func TestLoad_PreservesOrder(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "roster.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"id": "c", "url": "https://example.gov/c"},
		{"id": "a", "url": "https://example.gov/a"},
		{"id": "b", "url": "https://example.gov/b"}
	]`), 0o600))

	members, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"c", "a", "b"}, []string{members[0].ID, members[1].ID, members[2].ID})
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}
