// Package connector implements node.Connector: the backends that
// materialise a ComputeNode's output table.
package connector

import (
	"context"
	"sort"
	"sync"

	"github.com/Bayer-Group/phenex-go/internal/node"
	"github.com/Bayer-Group/phenex-go/internal/phenexerr"
	"github.com/Bayer-Group/phenex-go/internal/relation"
)

// MemoryConnector keeps every materialised table in memory, keyed by
// node name. It is the default connector for tests and small cohorts
// that don't need cross-process persistence.
type MemoryConnector struct {
	mu     sync.RWMutex
	tables map[string]relation.Table
}

// NewMemoryConnector builds an empty MemoryConnector.
func NewMemoryConnector() *MemoryConnector {
	return &MemoryConnector{tables: make(map[string]relation.Table)}
}

// CreateTable satisfies node.Connector.
func (c *MemoryConnector) CreateTable(ctx context.Context, t relation.Table, name string, overwrite bool) (relation.Table, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.tables[name]; exists && !overwrite {
		return nil, &phenexerr.ConfigurationError{Node: name, Detail: "table already exists and overwrite=false"}
	}
	c.tables[name] = t
	return t, nil
}

// GetTable satisfies node.Connector.
func (c *MemoryConnector) GetTable(ctx context.Context, name string) (relation.Table, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[name]
	if !ok {
		return nil, &phenexerr.LookupError{Kind: "table", Name: name}
	}
	return t, nil
}

// ListTables satisfies node.Connector.
func (c *MemoryConnector) ListTables(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.tables))
	for k := range c.tables {
		names = append(names, k)
	}
	sort.Strings(names)
	return names, nil
}

// DropTable satisfies node.Connector.
func (c *MemoryConnector) DropTable(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tables, name)
	return nil
}

var _ node.Connector = (*MemoryConnector)(nil)
