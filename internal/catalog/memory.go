package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
)

// Memory is an in-process catalog for development and tests.
type Memory struct {
	mu       sync.RWMutex
	products []Product
}

// NewMemory creates a catalog holding a copy of products.
func NewMemory(products ...Product) *Memory {
	return &Memory{products: append([]Product(nil), products...)}
}

// LoadMemory reads a JSON array of products from path.
func LoadMemory(path string) (*Memory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog seed: %w", err)
	}
	var products []Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("decode catalog seed %s: %w", path, err)
	}
	return NewMemory(products...), nil
}

// Add appends a product.
func (m *Memory) Add(p Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products = append(m.products, p)
}

func (m *Memory) Products(ctx context.Context) ([]Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Product(nil), m.products...), nil
}

func (m *Memory) Recent(ctx context.Context, n int) ([]Product, error) {
	all, err := m.Products(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if n >= 0 && len(all) > n {
		all = all[:n]
	}
	return all, nil
}
