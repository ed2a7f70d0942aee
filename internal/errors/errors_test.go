package errors_test

import (
	"errors"
	"fmt"
	"testing"

	boterr "github.com/KirkDiggler/mcbot/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsCode(t *testing.T) {
	base := boterr.New(boterr.CodeListenerFailure, "listener failed").WithMeta("kind", "spawned")
	wrapped := boterr.Wrap(fmt.Errorf("pass: %w", base), "emit failed")

	require.NotNil(t, wrapped)
	assert.Equal(t, boterr.CodeListenerFailure, wrapped.Code)
	assert.True(t, boterr.IsListenerFailure(wrapped))
	assert.Equal(t, "spawned", boterr.GetMeta(wrapped)["kind"])
	assert.ErrorIs(t, wrapped, base)
}

func TestWrapPlainError(t *testing.T) {
	cause := errors.New("boom")
	wrapped := boterr.Wrapf(cause, "task %d", 3)

	assert.Equal(t, boterr.CodeUnknown, boterr.GetCode(wrapped))
	assert.Equal(t, "task 3: boom", wrapped.Error())
	assert.Nil(t, boterr.Wrap(nil, "nothing"))
}

func TestWrapWithCode(t *testing.T) {
	wrapped := boterr.WrapWithCode(errors.New("recovered"), boterr.CodePanic, "listener panicked")

	assert.True(t, boterr.IsPanic(wrapped))
	assert.False(t, boterr.IsValidation(wrapped))
	assert.Nil(t, boterr.WrapWithCode(nil, boterr.CodePanic, "unused"))
}

func TestMetaIsCopiedOnWrap(t *testing.T) {
	base := boterr.Validationf("bad value %q", "x").WithMeta("field", "mode")
	wrapped := boterr.Wrap(base, "load config")
	wrapped.WithMeta("field", "other")

	assert.Equal(t, "mode", base.Meta["field"])
	assert.Equal(t, boterr.CodeUnknown, boterr.GetCode(errors.New("plain")))
}

func TestFields(t *testing.T) {
	err := boterr.Wrap(
		boterr.New(boterr.CodeListenerFailure, "emit spawned").WithMeta("kind", "spawned").WithMeta("failures", 2),
		"step 3",
	)

	assert.Equal(t, map[string]any{
		"code":     boterr.CodeListenerFailure,
		"kind":     "spawned",
		"failures": 2,
	}, boterr.Fields(err))
	assert.Equal(t, map[string]any{"code": boterr.CodeUnknown}, boterr.Fields(errors.New("plain")))
}
