package transport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopTransport struct{}

func (nopTransport) Connect(context.Context, ConnectConfig) (Conn, error) {
	return nil, nil
}

func TestRegisterAndOpen(t *testing.T) {
	Register("registry-test-a", nopTransport{})

	tr, err := Open("registry-test-a")
	require.NoError(t, err)
	assert.NotNil(t, tr)

	assert.Contains(t, Drivers(), "registry-test-a")
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("registry-test-unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}

func TestRegisterNilPanics(t *testing.T) {
	assert.Panics(t, func() { Register("registry-test-nil", nil) })
}

func TestRegisterDuplicatePanics(t *testing.T) {
	Register("registry-test-dup", nopTransport{})
	assert.Panics(t, func() { Register("registry-test-dup", nopTransport{}) })
}
