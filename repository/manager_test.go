package repository

import (
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	m, err := NewManager(dir)
	require.NoError(t, err)
	return m, dir
}

func TestManager(t *testing.T) {
	manager, dir := setupTestManager(t)
	code := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	err := manager.RegisterCode("contract.wasm", code)
	require.NoError(t, err)

	moduleDir := filepath.Join(dir, "contract.wasm")
	assert.DirExists(t, moduleDir)
	assert.FileExists(t, filepath.Join(moduleDir, "code.wasm"))
	assert.FileExists(t, filepath.Join(moduleDir, "metadata.json"))

	mc, err := manager.GetCode("contract.wasm")
	require.NoError(t, err)
	assert.Equal(t, code, mc.Code)
	assert.Equal(t, sha256.Sum256(code), mc.Hash)
	assert.False(t, mc.UpdateTime.IsZero())

	assert.True(t, manager.Has("contract.wasm"))
	names, err := manager.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"contract.wasm"}, names)
}

func TestRegisterDuplicate(t *testing.T) {
	manager, _ := setupTestManager(t)
	require.NoError(t, manager.RegisterCode("a.wasm", []byte{1}))
	assert.ErrorIs(t, manager.RegisterCode("a.wasm", []byte{2}), ErrCodeExists)
}

func TestGetMissing(t *testing.T) {
	manager, _ := setupTestManager(t)
	_, err := manager.GetCode("missing.wasm")
	assert.ErrorIs(t, err, ErrCodeNotFound)
	assert.False(t, manager.Has("missing.wasm"))
}

func TestInvalidNames(t *testing.T) {
	manager, _ := setupTestManager(t)
	for _, name := range []string{"", ".", "..", "a/b.wasm", `a\b.wasm`} {
		assert.ErrorIs(t, manager.RegisterCode(name, []byte{1}), ErrInvalidName, name)
	}
	assert.Error(t, manager.RegisterCode("empty.wasm", nil))
}

func TestTamperedCode(t *testing.T) {
	manager, dir := setupTestManager(t)
	require.NoError(t, manager.RegisterCode("a.wasm", []byte{1, 2, 3}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.wasm", "code.wasm"), []byte{9}, 0644))

	_, err := manager.GetCode("a.wasm")
	assert.ErrorIs(t, err, ErrHashMismatch)
}
