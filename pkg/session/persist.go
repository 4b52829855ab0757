package session

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	json "github.com/json-iterator/go"
)

// Persister stores the session snapshot between processes.
type Persister interface {
	// Load returns nil, nil when nothing has been saved.
	Load() (*Snapshot, error)
	Save(Snapshot) error
	Clear() error
}

// FilePersister keeps the snapshot in a JSON file readable only by its owner.
type FilePersister struct {
	path string
}

// NewFilePersister returns a persister writing to path.
func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

// Path returns the snapshot file path.
func (p *FilePersister) Path() string {
	return p.path
}

// Load reads the snapshot from disk
func (p *FilePersister) Load() (*Snapshot, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Save writes the snapshot, replacing the file atomically.
func (p *FilePersister) Save(snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(p.path), 0700); err != nil {
		return err
	}

	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, p.path)
}

// Clear deletes the snapshot file. A missing file is not an error.
func (p *FilePersister) Clear() error {
	err := os.Remove(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// MemoryPersister keeps the snapshot in memory.
type MemoryPersister struct {
	mu    sync.Mutex
	snap  *Snapshot
	saves int
}

// NewMemoryPersister returns an empty in-memory persister.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{}
}

func (p *MemoryPersister) Load() (*Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.snap == nil {
		return nil, nil
	}
	snap := *p.snap
	return &snap, nil
}

func (p *MemoryPersister) Save(snap Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if snap.User != nil {
		u := *snap.User
		snap.User = &u
	}
	p.snap = &snap
	p.saves++
	return nil
}

func (p *MemoryPersister) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap = nil
	return nil
}

// Saves returns how many times Save was called.
func (p *MemoryPersister) Saves() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saves
}
