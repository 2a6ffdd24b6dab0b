// Package repository stores wasm session modules on disk by file name.
package repository

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	codeFile     = "code.wasm"
	metadataFile = "metadata.json"
)

var (
	ErrCodeNotFound = errors.New("wasm module not found")
	ErrCodeExists   = errors.New("wasm module already exists")
	ErrInvalidName  = errors.New("invalid module name")
	ErrHashMismatch = errors.New("wasm module hash mismatch")
)

// Manager keeps one directory per module under rootDir
type Manager struct {
	rootDir string
}

// ModuleCode is a stored module together with its metadata
type ModuleCode struct {
	Name       string
	Code       []byte
	UpdateTime time.Time
	Hash       [32]byte
}

// ModuleMetadata is the on-disk metadata.json
type ModuleMetadata struct {
	Name       string    `json:"name"`
	Hash       string    `json:"hash"`
	Size       int       `json:"size"`
	UpdateTime time.Time `json:"update_time"`
}

// NewManager creates a manager rooted at rootDir, creating it if needed
func NewManager(rootDir string) (*Manager, error) {
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		slog.Error("failed to create root directory", "dir", rootDir, "error", err)
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}

	return &Manager{
		rootDir: rootDir,
	}, nil
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// RegisterCode stores code under name. Registering an existing name fails.
func (m *Manager) RegisterCode(name string, code []byte) error {
	if err := validateName(name); err != nil {
		return err
	}
	if len(code) == 0 {
		return errors.New("wasm code cannot be empty")
	}

	dir := m.getModuleDir(name)
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf("%w: %s", ErrCodeExists, name)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to check module directory: %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create module directory: %w", err)
	}

	mc := &ModuleCode{
		Name:       name,
		Code:       code,
		UpdateTime: time.Now(),
		Hash:       sha256.Sum256(code),
	}
	if err := m.saveModuleFiles(mc); err != nil {
		os.RemoveAll(dir)
		return fmt.Errorf("failed to save module files: %w", err)
	}

	slog.Debug("registered wasm module", "name", name, "size", len(code), "hash", hex.EncodeToString(mc.Hash[:]))
	return nil
}

// GetCode loads the module stored under name
func (m *Manager) GetCode(name string) (*ModuleCode, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	return m.loadModuleCode(name)
}

// Has reports whether a module is stored under name
func (m *Manager) Has(name string) bool {
	if validateName(name) != nil {
		return false
	}
	_, err := os.Stat(filepath.Join(m.getModuleDir(name), metadataFile))
	return err == nil
}

// List returns the stored module names in directory order
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read root directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && m.Has(e.Name()) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (m *Manager) getModuleDir(name string) string {
	return filepath.Join(m.rootDir, name)
}

func (m *Manager) saveModuleFiles(mc *ModuleCode) error {
	dir := m.getModuleDir(mc.Name)

	if err := os.WriteFile(filepath.Join(dir, codeFile), mc.Code, 0644); err != nil {
		return fmt.Errorf("failed to save code: %w", err)
	}

	metadata := ModuleMetadata{
		Name:       mc.Name,
		Hash:       hex.EncodeToString(mc.Hash[:]),
		Size:       len(mc.Code),
		UpdateTime: mc.UpdateTime,
	}
	metadataBytes, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, metadataFile), metadataBytes, 0644); err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}

	return nil
}

func (m *Manager) loadModuleCode(name string) (*ModuleCode, error) {
	dir := m.getModuleDir(name)

	metadataBytes, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrCodeNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata ModuleMetadata
	if err := json.Unmarshal(metadataBytes, &metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	code, err := os.ReadFile(filepath.Join(dir, codeFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read code: %w", err)
	}

	hash := sha256.Sum256(code)
	if hex.EncodeToString(hash[:]) != metadata.Hash {
		return nil, fmt.Errorf("%w: %s", ErrHashMismatch, name)
	}

	return &ModuleCode{
		Name:       name,
		Code:       code,
		UpdateTime: metadata.UpdateTime,
		Hash:       hash,
	}, nil
}
