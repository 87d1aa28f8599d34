package result

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuccessDefaults(t *testing.T) {
	r := Success(map[string]any{"id": 1})

	assert.True(t, r.IsSuccess())
	assert.False(t, r.IsError())
	assert.Equal(t, http.StatusOK, r.StatusCode())
	assert.Equal(t, DefaultSuccessMessage, r.Message())
	assert.Equal(t, map[string]any{"id": 1}, r.Data())
	assert.Empty(t, r.Errors())
}

func TestSuccessIgnoresErrorsAndBadStatus(t *testing.T) {
	r := Success("x", WithStatus(http.StatusConflict), WithErrors(map[string][]string{"a": {"b"}}))

	assert.Equal(t, http.StatusOK, r.StatusCode())
	assert.Empty(t, r.Errors())

	created := Success("x", WithStatus(http.StatusCreated), WithMessage("created"))
	assert.Equal(t, http.StatusCreated, created.StatusCode())
	assert.Equal(t, "created", created.Message())
}

func TestErrorDefaults(t *testing.T) {
	r := Error("")

	assert.True(t, r.IsError())
	assert.Equal(t, http.StatusBadRequest, r.StatusCode())
	assert.Equal(t, DefaultErrorMessage, r.Message())
	assert.Nil(t, r.Data())
	assert.NotNil(t, r.Errors())
	assert.Empty(t, r.Errors())
}

func TestErrorWithOptions(t *testing.T) {
	r := Error("taken",
		WithStatus(http.StatusConflict),
		WithErrors(map[string][]string{"email": {"taken"}, "empty": nil}),
		WithData(map[string]bool{"available": false}),
	)

	assert.Equal(t, http.StatusConflict, r.StatusCode())
	assert.Equal(t, "taken", r.Message())
	assert.Equal(t, map[string][]string{"email": {"taken"}}, r.Errors())
	assert.Equal(t, map[string]bool{"available": false}, r.Data())
}

func TestErrorRejectsSuccessStatus(t *testing.T) {
	for _, code := range []int{0, 200, 201, 302, 600} {
		r := Error("boom", WithStatus(code))
		assert.Equal(t, http.StatusBadRequest, r.StatusCode(), "status %d", code)
	}
}

func TestValidationErrorStatusIsFixed(t *testing.T) {
	r := ValidationError(map[string][]string{"name": {"required"}}, WithStatus(http.StatusTeapot))

	assert.True(t, r.IsError())
	assert.Equal(t, http.StatusUnprocessableEntity, r.StatusCode())
	assert.Equal(t, DefaultValidationMessage, r.Message())
	assert.Equal(t, []string{"required"}, r.Errors()["name"])
}

func TestStrictComplement(t *testing.T) {
	results := []Result{
		Success(nil),
		Error("e"),
		ValidationError(nil),
		{},
	}
	for _, r := range results {
		assert.Equal(t, r.IsSuccess(), !r.IsError())
	}
}

func TestErrorsAreCopied(t *testing.T) {
	in := map[string][]string{"email": {"taken"}}
	r := ValidationError(in)

	in["email"][0] = "mutated"
	in["name"] = []string{"added"}
	assert.Equal(t, map[string][]string{"email": {"taken"}}, r.Errors())

	out := r.Errors()
	out["email"][0] = "mutated"
	assert.Equal(t, "taken", r.Errors()["email"][0])
}

func TestDataAs(t *testing.T) {
	r := Success(map[string]any{"id": 7})

	m, ok := DataAs[map[string]any](r)
	require.True(t, ok)
	assert.Equal(t, 7, m["id"])

	_, ok = DataAs[string](r)
	assert.False(t, ok)
}
