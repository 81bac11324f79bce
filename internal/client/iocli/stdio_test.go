package iocli

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStdio(t *testing.T) {
	assert.NotNil(t, NewStdio())
}

func TestStdio_Output(t *testing.T) {
	var out bytes.Buffer
	console := New(strings.NewReader(""), &out)

	console.Println("hello", "world")
	console.Printf("test %d %s\n", 1, "abc")
	_, err := console.Write([]byte("raw"))
	require.NoError(t, err)

	assert.Equal(t, "hello world\ntest 1 abc\nraw", out.String())
}

// Несколько строк подряд читаются из общего буфера
func TestStdio_ReadInputSequential(t *testing.T) {
	var out bytes.Buffer
	console := New(strings.NewReader("first line\n  second  \nlast"), &out)

	first, err := console.ReadInput("> ")
	require.NoError(t, err)
	assert.Equal(t, "first line", first)

	second, err := console.ReadInput("> ")
	require.NoError(t, err)
	assert.Equal(t, "second", second)

	last, err := console.ReadInput("")
	require.NoError(t, err)
	assert.Equal(t, "last", last)

	_, err = console.ReadInput("> ")
	assert.ErrorIs(t, err, io.EOF)

	assert.Equal(t, "> > > ", out.String())
}

func TestStdio_ReadPasswordNotTerminal(t *testing.T) {
	var out bytes.Buffer
	console := New(strings.NewReader("correct horse\n"), &out)

	password, err := console.ReadPassword("Passphrase: ")
	require.NoError(t, err)
	assert.Equal(t, "correct horse", password)
	assert.Equal(t, "Passphrase: ", out.String())
}
