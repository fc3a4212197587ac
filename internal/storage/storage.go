// Package storage persists the per-workspace envelope.
//
// The envelope itself is plain JSON (state.json, versioned for future
// migration). File content snapshots are externalized into a
// content-addressable pool: each unique content is zstd-compressed and
// stored once under its blake3 hash, and the envelope carries only the
// hashes. Load rehydrates the inline contents so callers never see the
// pool.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
	"lukechampine.com/blake3"

	"guardian/internal/checkpoint"
	"guardian/internal/config"
)

// Storage manages envelope persistence and the content pool.
type Storage struct {
	statePath string
	poolDir   string
	mu        sync.Mutex
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
}

// New creates a Storage writing to the given state file and pool dir.
func New(statePath, poolDir string) *Storage {
	encoder, _ := zstd.NewWriter(nil)
	decoder, _ := zstd.NewReader(nil)

	return &Storage{
		statePath: statePath,
		poolDir:   poolDir,
		encoder:   encoder,
		decoder:   decoder,
	}
}

// Hash returns the blake3 hex digest of content.
func Hash(content string) string {
	sum := blake3.Sum256([]byte(content))
	return fmt.Sprintf("%x", sum)
}

// Save writes the envelope atomically, externalizing content snapshots
// into the pool first.
func (s *Storage) Save(data *checkpoint.StorageData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := *data
	out.Version = checkpoint.StorageVersion
	out.Checkpoints = make([]checkpoint.Checkpoint, len(data.Checkpoints))

	for i, cp := range data.Checkpoints {
		cp.ChangedFiles = append([]checkpoint.ChangedFile(nil), cp.ChangedFiles...)
		for j := range cp.ChangedFiles {
			if err := s.externalize(&cp.ChangedFiles[j]); err != nil {
				return fmt.Errorf("externalize %s: %w", cp.ChangedFiles[j].Path, err)
			}
		}
		out.Checkpoints[i] = cp
	}

	encoded, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	tmp := s.statePath + ".tmp"
	if err := os.WriteFile(tmp, encoded, 0644); err != nil {
		return fmt.Errorf("write envelope: %w", err)
	}
	if err := os.Rename(tmp, s.statePath); err != nil {
		return fmt.Errorf("replace envelope: %w", err)
	}

	return nil
}

// Load reads the envelope and rehydrates content snapshots from the
// pool. A missing state file yields a fresh envelope with default
// settings, not an error.
func (s *Storage) Load() (*checkpoint.StorageData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	encoded, err := os.ReadFile(s.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &checkpoint.StorageData{
				Version:  checkpoint.StorageVersion,
				Settings: config.DefaultSettings(),
			}, nil
		}
		return nil, fmt.Errorf("read envelope: %w", err)
	}

	var data checkpoint.StorageData
	if err := json.Unmarshal(encoded, &data); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	for i := range data.Checkpoints {
		for j := range data.Checkpoints[i].ChangedFiles {
			s.rehydrate(&data.Checkpoints[i].ChangedFiles[j])
		}
	}

	return &data, nil
}

// externalize moves inline contents into the pool, leaving hashes.
func (s *Storage) externalize(cf *checkpoint.ChangedFile) error {
	if cf.PreviousContent != nil {
		hash, err := s.writePool(*cf.PreviousContent)
		if err != nil {
			return err
		}
		cf.PreviousHash = hash
		cf.PreviousContent = nil
	}
	if cf.CurrentContent != nil {
		hash, err := s.writePool(*cf.CurrentContent)
		if err != nil {
			return err
		}
		cf.CurrentHash = hash
		cf.CurrentContent = nil
	}
	return nil
}

// rehydrate fills inline contents back in from the pool. A missing or
// corrupt pool entry leaves the content nil; validation surfaces it.
func (s *Storage) rehydrate(cf *checkpoint.ChangedFile) {
	if cf.PreviousHash != "" && cf.PreviousContent == nil {
		if content, err := s.readPool(cf.PreviousHash); err == nil {
			cf.PreviousContent = &content
		}
	}
	if cf.CurrentHash != "" && cf.CurrentContent == nil {
		if content, err := s.readPool(cf.CurrentHash); err == nil {
			cf.CurrentContent = &content
		}
	}
}

// writePool stores content by hash, deduplicating identical snapshots.
func (s *Storage) writePool(content string) (string, error) {
	hash := Hash(content)
	path := filepath.Join(s.poolDir, hash)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		compressed := s.encoder.EncodeAll([]byte(content), nil)
		if err := os.WriteFile(path, compressed, 0644); err != nil {
			return "", err
		}
	}

	return hash, nil
}

func (s *Storage) readPool(hash string) (string, error) {
	compressed, err := os.ReadFile(filepath.Join(s.poolDir, hash))
	if err != nil {
		return "", err
	}

	decoded, err := s.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return "", err
	}

	return string(decoded), nil
}
