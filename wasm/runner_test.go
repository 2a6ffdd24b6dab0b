package wasm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/govm-net/enginetest-support/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingHost struct {
	keys    types.NamedKeys
	dicts   []string
	putErr  error
	dictErr error
}

func newRecordingHost() *recordingHost {
	return &recordingHost{keys: types.NamedKeys{}}
}

func (h *recordingHost) PutKey(name string, key types.Key) error {
	if h.putErr != nil {
		return h.putErr
	}
	h.keys[name] = key
	return nil
}

func (h *recordingHost) NewDictionary(name string) (types.URef, error) {
	if h.dictErr != nil {
		return types.URef{}, h.dictErr
	}
	h.dicts = append(h.dicts, name)
	return types.NewURef([types.AddrLength]byte{1}, types.AccessReadAddWrite), nil
}

func setupTestRunner(t *testing.T) *Runner {
	t.Helper()
	return NewRunner(Config{})
}

func TestRunEmptyCall(t *testing.T) {
	r := setupTestRunner(t)
	err := r.Run(context.Background(), emptyModule(), newRecordingHost(), "")
	assert.NoError(t, err)
}

func TestRunRevert(t *testing.T) {
	r := setupTestRunner(t)
	status := types.UserError(65535)

	err := r.Run(context.Background(), revertModule(status.Code), newRecordingHost(), "call")
	require.Error(t, err)

	var revert *RevertError
	require.True(t, errors.As(err, &revert))
	assert.Equal(t, status, revert.Status)
	code, ok := revert.Status.User()
	assert.True(t, ok)
	assert.Equal(t, uint16(65535), code)
}

func TestRunTrap(t *testing.T) {
	r := setupTestRunner(t)
	err := r.Run(context.Background(), trapModule(), newRecordingHost(), "")
	assert.ErrorIs(t, err, ErrTrap)
}

func TestRunInvalidInput(t *testing.T) {
	r := NewRunner(Config{MaxCodeSize: 16})
	ctx := context.Background()

	assert.ErrorIs(t, r.Run(ctx, nil, newRecordingHost(), ""), ErrEmptyCode)
	assert.ErrorIs(t, r.Run(ctx, make([]byte, 17), newRecordingHost(), ""), ErrCodeTooLarge)
	assert.ErrorIs(t, r.Run(ctx, []byte("not wasm"), newRecordingHost(), ""), ErrInvalidModule)
}

func TestRunMissingEntryPoint(t *testing.T) {
	r := setupTestRunner(t)
	err := r.Run(context.Background(), emptyModule(), newRecordingHost(), "install")
	assert.ErrorIs(t, err, ErrMissingEntryPoint)
}

func TestRunPutKey(t *testing.T) {
	r := setupTestRunner(t)
	host := newRecordingHost()
	key := types.HashKey(types.HashAddr{7})

	err := r.Run(context.Background(), putKeyModule("greeting", key.Bytes()), host, "")
	var revert *RevertError
	require.True(t, errors.As(err, &revert))
	assert.Equal(t, uint32(0), revert.Status.Code)
	assert.Equal(t, key, host.keys["greeting"])
}

func TestRunPutKeyStatus(t *testing.T) {
	r := setupTestRunner(t)

	t.Run("malformed key", func(t *testing.T) {
		host := newRecordingHost()
		err := r.Run(context.Background(), putKeyModule("k", []byte{0xff}), host, "")
		var revert *RevertError
		require.True(t, errors.As(err, &revert))
		assert.Equal(t, types.ApiErrorDeserialize, revert.Status)
		assert.Empty(t, host.keys)
	})

	t.Run("api error from host", func(t *testing.T) {
		host := newRecordingHost()
		host.putErr = types.ApiErrorInvalidArgument
		err := r.Run(context.Background(), putKeyModule("k", types.HashKey(types.HashAddr{}).Bytes()), host, "")
		var revert *RevertError
		require.True(t, errors.As(err, &revert))
		assert.Equal(t, types.ApiErrorInvalidArgument, revert.Status)
	})

	t.Run("host failure aborts", func(t *testing.T) {
		host := newRecordingHost()
		host.putErr = errors.New("storage offline")
		err := r.Run(context.Background(), putKeyModule("k", types.HashKey(types.HashAddr{}).Bytes()), host, "")
		assert.EqualError(t, err, "storage offline")
	})
}

func TestRunNewDictionary(t *testing.T) {
	r := setupTestRunner(t)
	host := newRecordingHost()

	err := r.Run(context.Background(), newDictionaryModule("token_owners"), host, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"token_owners"}, host.dicts)
}
