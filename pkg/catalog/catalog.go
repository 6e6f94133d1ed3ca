// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package catalog holds the databases an operator may ask about and resolves
// the Prometheus job that scopes each one.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ErrUnknownDatabase is returned for names absent from the catalog.
var ErrUnknownDatabase = errors.New("unknown database")

// DefaultFile is the catalog file name looked up when none is configured.
const DefaultFile = "databases.yaml"

// Database is one catalog entry.
type Database struct {
	Name string `yaml:"name" json:"name"`

	// Job pins the Prometheus job label. Empty means detect from pg_up.
	Job string `yaml:"job,omitempty" json:"job,omitempty"`
}

type catalogFile struct {
	Databases []Database `yaml:"databases"`
}

// Parse decodes a catalog document. Names must be present and unique.
func Parse(data []byte) ([]Database, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	seen := make(map[string]bool, len(f.Databases))
	for i, db := range f.Databases {
		if db.Name == "" {
			return nil, fmt.Errorf("database %d: name required", i)
		}
		if seen[db.Name] {
			return nil, fmt.Errorf("database %q listed twice", db.Name)
		}
		seen[db.Name] = true
	}
	return f.Databases, nil
}

// Load reads and parses a catalog file.
func Load(path string) ([]Database, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

// Catalog is the thread-safe, reloadable database list.
type Catalog struct {
	path   string
	logger *zap.Logger

	mu        sync.RWMutex
	databases []Database
	byName    map[string]Database

	watchMu sync.Mutex
	watcher *watcher
}

// New loads the catalog from path.
func New(path string, logger *zap.Logger) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Catalog{path: path, logger: logger}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// NewStatic builds a catalog that is not backed by a file.
func NewStatic(databases []Database) *Catalog {
	c := &Catalog{logger: zap.NewNop()}
	c.set(databases)
	return c
}

// Path returns the backing file, empty for static catalogs.
func (c *Catalog) Path() string {
	return c.path
}

// Reload re-reads the backing file. On error the previous list is kept.
func (c *Catalog) Reload() error {
	if c.path == "" {
		return nil
	}
	databases, err := Load(c.path)
	if err != nil {
		return err
	}
	c.set(databases)
	c.logger.Info("database catalog loaded",
		zap.String("file", c.path),
		zap.Int("databases", len(databases)))
	return nil
}

func (c *Catalog) set(databases []Database) {
	byName := make(map[string]Database, len(databases))
	for _, db := range databases {
		byName[db.Name] = db
	}

	c.mu.Lock()
	c.databases = append([]Database(nil), databases...)
	c.byName = byName
	c.mu.Unlock()
}

// List returns the databases in file order.
func (c *Catalog) List() []Database {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Database{}, c.databases...)
}

// Get looks up a database by exact name.
func (c *Catalog) Get(name string) (Database, error) {
	c.mu.RLock()
	db, ok := c.byName[name]
	c.mu.RUnlock()
	if !ok {
		return Database{}, fmt.Errorf("%w: %s", ErrUnknownDatabase, name)
	}
	return db, nil
}

// Contains reports whether name is in the catalog.
func (c *Catalog) Contains(name string) bool {
	_, err := c.Get(name)
	return err == nil
}
