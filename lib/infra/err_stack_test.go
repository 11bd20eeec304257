package infra

import (
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
)

var initPC = caller()

func caller() Frame {
	var PCs [3]uintptr
	n := runtime.Callers(2, PCs[:])
	frames := runtime.CallersFrames(PCs[:n])
	frame, _ := frames.Next()
	return Frame(frame.PC)
}

func TestFrameFormat(t *testing.T) {
	testcases := []struct {
		Frame
		format string
		check  func(t *testing.T, res string)
	}{
		{
			initPC,
			"%s",
			func(t *testing.T, res string) {
				require.Equal(t, "err_stack_test.go", res)
			},
		},
		{
			initPC,
			"%+s",
			func(t *testing.T, res string) {
				require.True(t, strings.HasPrefix(res, "github.com/benz9527/xset/lib/infra.init\n\t"))
				require.True(t, strings.HasSuffix(res, "lib/infra/err_stack_test.go"))
			},
		},
		{
			initPC,
			"%n",
			func(t *testing.T, res string) {
				require.Equal(t, "init", res)
			},
		},
		{
			initPC,
			"%v",
			func(t *testing.T, res string) {
				require.Equal(t, "err_stack_test.go:16", res)
			},
		},
		{
			Frame(0),
			"%s",
			func(t *testing.T, res string) {
				require.Equal(t, "unknownFile", res)
			},
		},
		{
			Frame(0),
			"%n",
			func(t *testing.T, res string) {
				require.Equal(t, "unknownFunc", res)
			},
		},
		{
			Frame(0),
			"%d",
			func(t *testing.T, res string) {
				require.Equal(t, "0", res)
			},
		},
	}

	for _, tc := range testcases {
		tc.check(t, fmt.Sprintf(tc.format, tc.Frame))
	}
}

func TestFrameMarshal(t *testing.T) {
	text, err := Frame(0).MarshalText()
	require.NoError(t, err)
	require.Equal(t, "unknownFrame", string(text))

	text, err = initPC.MarshalText()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(text), "github.com/benz9527/xset/lib/infra.init "))
	require.True(t, strings.HasSuffix(string(text), "err_stack_test.go:16"))

	_bytes, err := json.Marshal(Frame(0))
	require.NoError(t, err)
	require.Equal(t, "{\"frame\":\"unknownFrame\"}", string(_bytes))

	_bytes, err = json.Marshal(initPC)
	require.NoError(t, err)
	res := map[string]string{}
	require.NoError(t, json.Unmarshal(_bytes, &res))
	require.Equal(t, "github.com/benz9527/xset/lib/infra.init", res["func"])
}

var errSentinel = errors.New("sentinel")

func TestErrorStack(t *testing.T) {
	err := NewErrorStack("unknown strategy")
	require.Error(t, err)
	require.Equal(t, "unknown strategy", err.Error())
	var es ErrorStack
	require.True(t, errors.As(err, &es))
	require.Greater(t, len(es.Stack()), 0)
	require.Equal(t, "TestErrorStack", fmt.Sprintf("%n", es.Stack()[0]))

	require.Nil(t, WrapErrorStack(nil))
	require.Nil(t, WrapErrorStackWithMessage(nil, "ignored"))

	wrapped := WrapErrorStack(errSentinel)
	require.ErrorIs(t, wrapped, errSentinel)
	require.Equal(t, "sentinel", wrapped.Error())
	// An ErrorStack is not wrapped twice.
	require.True(t, wrapped == WrapErrorStack(wrapped))

	withMsg := WrapErrorStackWithMessage(errSentinel, "red violation")
	require.ErrorIs(t, withMsg, errSentinel)
	require.Equal(t, "red violation: sentinel", withMsg.Error())
	require.Contains(t, fmt.Sprintf("%+v", withMsg), "err_stack_test.go")
}

func TestErrorStackMarshalLogObject(t *testing.T) {
	merr := multierr.Combine(errSentinel, errors.New("another"))
	err := WrapErrorStackWithMessage(merr, "validate")
	enc := zapcore.NewMapObjectEncoder()
	require.NoError(t, err.(ErrorStack).MarshalLogObject(enc))
	require.Equal(t, "validate: sentinel; another", enc.Fields["error"])
	require.Equal(t, []any{"sentinel", "another"}, enc.Fields["errors"])
	frames, ok := enc.Fields["errorStack"].([]any)
	require.True(t, ok)
	require.Greater(t, len(frames), 0)
}
