package fault

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesKindOnly(t *testing.T) {
	t.Parallel()
	err := Transport("fetch: GET", io.ErrUnexpectedEOF)

	assert.ErrorIs(t, err, ErrTransport)
	assert.NotErrorIs(t, err, ErrDecode)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, "fetch: GET: transport: unexpected EOF", err.Error())
}

func TestKindOfWrapped(t *testing.T) {
	t.Parallel()
	inner := Decode("weather", errors.New("bad json"))
	wrapped := fmt.Errorf("dashboard: %w", inner)

	assert.Equal(t, KindDecode, KindOf(wrapped))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestFatalWrappingKeepsCause(t *testing.T) {
	t.Parallel()
	cause := ResourceExhausted("netpool", errors.New("full"))
	err := Fatal("supervisor: dashboard", cause)

	assert.ErrorIs(t, err, ErrFatal)
	assert.ErrorIs(t, err, ErrResourceExhausted)
	assert.Equal(t, KindFatal, KindOf(err))
	assert.Equal(t, "fatal", KindOf(err).String())
}

func TestErrorStrings(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "event", (&Error{Kind: KindEventLocal}).Error())
	assert.Equal(t, "ics: event", (&Error{Kind: KindEventLocal, Op: "ics"}).Error())
	assert.Equal(t, "decode: x", (&Error{Kind: KindDecode, Err: errors.New("x")}).Error())
	assert.Equal(t, "resource_exhausted", KindResourceExhausted.String())
}
