package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubReadPassword(t *testing.T, fn func(int) ([]byte, error)) {
	t.Helper()
	old := readPassword
	readPassword = fn
	t.Cleanup(func() { readPassword = old })
}

func TestGetSimpleText(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("hello world\n"))
	var out bytes.Buffer
	got, err := GetSimpleText(in, "Name?", &out)
	require.NoError(t, err)
	assert.Equal(t, "hello world", got)
	assert.Equal(t, "Name?\n> ", out.String())
}

func TestGetSimpleTextEOF(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("lastline"))
	var out bytes.Buffer
	got, err := GetSimpleText(in, "Name?", &out)
	require.NoError(t, err)
	assert.Equal(t, "lastline", got)

	_, err = GetSimpleText(in, "Name?", &out)
	assert.ErrorIs(t, err, io.EOF)
}

func TestGetPassword(t *testing.T) {
	stubReadPassword(t, func(int) ([]byte, error) { return []byte("s3cret"), nil })

	var out bytes.Buffer
	pw, err := GetPassword(&out, "Password")
	require.NoError(t, err)
	assert.Equal(t, []byte("s3cret"), pw)
	assert.Equal(t, "Password: \n", out.String())
}

func TestGetPassword_Error(t *testing.T) {
	stubReadPassword(t, func(int) ([]byte, error) { return nil, errors.New("boom") })

	var out bytes.Buffer
	_, err := GetPassword(&out, "Password")
	assert.EqualError(t, err, "boom")
}

func TestTerminalPrompt(t *testing.T) {
	ctx := context.Background()

	t.Run("returns password and names the purpose", func(t *testing.T) {
		stubReadPassword(t, func(int) ([]byte, error) { return []byte("pw"), nil })
		var out bytes.Buffer
		pw, err := TerminalPrompt(&out)(ctx, "unlock vault")
		require.NoError(t, err)
		assert.Equal(t, []byte("pw"), pw)
		assert.Contains(t, out.String(), "Master password to unlock vault: ")
	})

	t.Run("empty answer cancels", func(t *testing.T) {
		stubReadPassword(t, func(int) ([]byte, error) { return []byte{}, nil })
		_, err := TerminalPrompt(io.Discard)(ctx, "x")
		assert.ErrorIs(t, err, common.ErrPromptCancelled)
	})

	t.Run("end of input cancels", func(t *testing.T) {
		stubReadPassword(t, func(int) ([]byte, error) { return nil, io.EOF })
		_, err := TerminalPrompt(io.Discard)(ctx, "x")
		assert.ErrorIs(t, err, common.ErrPromptCancelled)
	})

	t.Run("other errors pass through", func(t *testing.T) {
		stubReadPassword(t, func(int) ([]byte, error) { return nil, errors.New("tty gone") })
		_, err := TerminalPrompt(io.Discard)(ctx, "x")
		require.Error(t, err)
		assert.NotErrorIs(t, err, common.ErrPromptCancelled)
	})

	t.Run("cancelled context", func(t *testing.T) {
		stubReadPassword(t, func(int) ([]byte, error) {
			t.Fatal("terminal must not be read")
			return nil, nil
		})
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := TerminalPrompt(io.Discard)(cctx, "x")
		assert.ErrorIs(t, err, context.Canceled)
	})
}
