package foundation

import (
	"testing"

	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/stepd/internal/foundation/errors"
)

type backend string

func TestNormalizer(t *testing.T) {
	n := NewNormalizer("backend", map[string]backend{
		"file":   "file",
		"SQLite": "sqlite",
	}, "file")

	require.Equal(t, backend("sqlite"), n.Normalize("  sqlite "))
	require.Equal(t, backend("sqlite"), n.Normalize("SQLITE"))
	require.Equal(t, backend("file"), n.Normalize("bogus"))
	require.Equal(t, []string{"file", "sqlite"}, n.Keys())

	got, err := n.Parse("")
	require.NoError(t, err)
	require.Equal(t, backend("file"), got)

	_, err = n.Parse("redis")
	require.Error(t, err)
	require.Contains(t, err.Error(), `invalid backend "redis"`)
	require.Contains(t, err.Error(), "file, sqlite")
}

func TestValidationChain(t *testing.T) {
	v := Chain(NotEmpty("storage.backend"), OneOf("storage.backend", "file", "sqlite"))

	require.True(t, v("file").OK())

	res := v("")
	require.False(t, res.OK())
	require.Len(t, res.Errors, 2)
	require.Equal(t, "required", res.Errors[0].Code)
	require.Equal(t, "one_of", res.Errors[1].Code)

	err := res.ToError()
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
	require.Contains(t, err.Error(), "storage.backend: must not be empty")
}

func TestValidationResultCombine(t *testing.T) {
	require.True(t, Valid().Combine(Valid()).OK())
	require.NoError(t, Valid().ToError())

	a := Fail("a", "x", "bad a")
	b := Fail("b", "y", "bad b")
	require.Len(t, a.Combine(b).Errors, 2)
	require.Equal(t, a, a.Combine(Valid()))
	require.Equal(t, b, Valid().Combine(b))
}
