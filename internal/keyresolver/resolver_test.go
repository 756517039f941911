package keyresolver

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/taskforge/internal/domain"
)

func TestResolve_DefaultTemplate(t *testing.T) {
	ws := uuid.New()
	key, err := Resolve("", ws, "f/scripts/foo", domain.Args{})
	require.NoError(t, err)
	assert.Equal(t, ws.String()+":f/scripts/foo", key)
}

func TestResolve_Interpolation(t *testing.T) {
	ws := uuid.New()
	args := domain.Args{"user_id": []byte(`"alice"`)}

	key, err := Resolve("user:$args[user_id]", ws, "", args)
	require.NoError(t, err)
	assert.Equal(t, `user:"alice"`, key)
}

func TestResolve_MissingArgBecomesEmpty(t *testing.T) {
	ws := uuid.New()
	key, err := Resolve("user:$args[missing]", ws, "", domain.Args{})
	require.NoError(t, err)
	assert.Equal(t, "user:", key)
}

func TestResolve_MultipleTokensAndLiteralText(t *testing.T) {
	ws := uuid.New()
	args := domain.Args{
		"a": []byte(`1`),
		"b": []byte(`2`),
	}
	key, err := Resolve("sum-$args[a]-and-$args[b]!", ws, "", args)
	require.NoError(t, err)
	assert.Equal(t, "sum-1-and-2!", key)
}

func TestResolve_UnmatchedTokenLeftLiteral(t *testing.T) {
	ws := uuid.New()
	key, err := Resolve("prefix-$args[unterminated", ws, "", domain.Args{})
	require.NoError(t, err)
	assert.Equal(t, "prefix-$args[unterminated", key)
}

func TestResolve_S2Scenario(t *testing.T) {
	ws := uuid.New()
	template := "user:$args[user_id]"

	alice := domain.Args{"user_id": []byte(`"alice"`)}
	bob := domain.Args{"user_id": []byte(`"bob"`)}

	k1, err := Resolve(template, ws, "", alice)
	require.NoError(t, err)
	k2, err := Resolve(template, ws, "", bob)
	require.NoError(t, err)
	k3, err := Resolve(template, ws, "", alice)
	require.NoError(t, err)

	assert.Equal(t, k1, k3)
	assert.NotEqual(t, k1, k2)
}

func TestResolve_RejectsOverlongKey(t *testing.T) {
	ws := uuid.New()
	args := domain.Args{"big": []byte(`"` + strings.Repeat("x", MaxKeyLength) + `"`)}

	_, err := Resolve("k:$args[big]", ws, "", args)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidDebounceKey)
}
