package testfixtures

import (
	"fmt"
	"sync"
)

// IDGenerator yields "<prefix>-<n>" identifiers in sequence.
type IDGenerator struct {
	mu      sync.Mutex
	prefix  string
	counter uint64
	issued  []string
}

// NewIDGenerator returns a generator using prefix, "id" when empty.
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &IDGenerator{prefix: prefix}
}

// Next returns the next identifier.
func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	id := fmt.Sprintf("%s-%d", g.prefix, g.counter)
	g.issued = append(g.issued, id)
	return id
}

// NextFunc returns Next for injection into services.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "" }
	}
	return g.Next
}

// Issued lists every identifier handed out so far.
func (g *IDGenerator) Issued() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.issued...)
}
