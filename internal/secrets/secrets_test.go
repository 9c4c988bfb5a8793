package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/healthdesk/internal/errors"
)

func TestExpand(t *testing.T) {
	t.Setenv("HD_TOKEN", "abc123")
	t.Setenv("HD_USER", "desk")
	t.Setenv("HD_EMPTY", "")

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "empty", input: "", want: ""},
		{name: "literal", input: "plain-value", want: "plain-value"},
		{name: "single variable", input: "${HD_TOKEN}", want: "abc123"},
		{name: "embedded", input: "Bearer ${HD_TOKEN}", want: "Bearer abc123"},
		{name: "multiple", input: "${HD_USER}:${HD_TOKEN}", want: "desk:abc123"},
		{name: "fallback unused", input: "${HD_TOKEN:-other}", want: "abc123"},
		{name: "fallback used", input: "${HD_UNSET:-other}", want: "other"},
		{name: "empty fallback", input: "x${HD_UNSET:-}y", want: "xy"},
		{name: "empty counts as unset", input: "${HD_EMPTY}", wantErr: true},
		{name: "missing", input: "${HD_UNSET}", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Expand(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpand_ErrorNamesAllMissing(t *testing.T) {
	_, err := Expand("${HD_MISSING_A}/${HD_MISSING_B}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HD_MISSING_A")
	assert.Contains(t, err.Error(), "HD_MISSING_B")
}

func writeSecret(t *testing.T, content string, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(path, []byte(content), mode))
	return path
}

func TestReadFile(t *testing.T) {
	t.Parallel()

	t.Run("trims trailing newlines only", func(t *testing.T) {
		t.Parallel()
		got, err := ReadFile(writeSecret(t, " p@ss \r\n", 0o600))
		require.NoError(t, err)
		assert.Equal(t, " p@ss ", got)
	})

	t.Run("permissive mode still reads", func(t *testing.T) {
		t.Parallel()
		got, err := ReadFile(writeSecret(t, "value\n", 0o644))
		require.NoError(t, err)
		assert.Equal(t, "value", got)
	})

	t.Run("empty path", func(t *testing.T) {
		t.Parallel()
		_, err := ReadFile("")
		require.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := ReadFile(filepath.Join(t.TempDir(), "nope"))
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("directory", func(t *testing.T) {
		t.Parallel()
		_, err := ReadFile(t.TempDir())
		require.Error(t, err)
		assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	})

	t.Run("empty file", func(t *testing.T) {
		t.Parallel()
		_, err := ReadFile(writeSecret(t, "\n", 0o600))
		require.Error(t, err)
	})

	t.Run("too large", func(t *testing.T) {
		t.Parallel()
		_, err := ReadFile(writeSecret(t, strings.Repeat("x", maxFileSize+1), 0o600))
		require.Error(t, err)
		assert.True(t, errors.IsCategory(err, errors.CategoryLimit))
	})
}

func TestResolve(t *testing.T) {
	t.Setenv("HD_DB_PASSWORD", "from-env")
	file := writeSecret(t, "from-file\n", 0o600)

	got, err := Resolve(file, "${HD_DB_PASSWORD}")
	require.NoError(t, err)
	assert.Equal(t, "from-file", got, "file wins over value")

	got, err = Resolve("", "${HD_DB_PASSWORD}")
	require.NoError(t, err)
	assert.Equal(t, "from-env", got)

	got, err = Resolve("", "")
	require.NoError(t, err)
	assert.Empty(t, got)
}
