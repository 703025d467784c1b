// Package ledger tracks which alert identifiers have already been analyzed.
// The set is mirrored to an append-only newline-delimited file so processed
// alerts survive restarts. The ledger grows monotonically and is never
// pruned; its size is bounded by the total number of alerts ever processed.
package ledger

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Ledger is the durable processed-alert set.
type Ledger struct {
	mu   sync.RWMutex
	seen map[string]struct{}
	file *os.File
}

// Open loads the full ledger file into memory, creating it if absent.
func Open(path string) (*Ledger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		id := strings.TrimSpace(scanner.Text())
		if id != "" {
			seen[id] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	return &Ledger{seen: seen, file: f}, nil
}

// Seen reports whether an identifier has already been processed.
func (l *Ledger) Seen(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.seen[id]
	return ok
}

// Mark durably records an identifier as processed: the append is written and
// synced before the in-memory set is updated, so an identifier is never in
// the set without being on disk.
func (l *Ledger) Mark(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.seen[id]; ok {
		return nil
	}

	if _, err := fmt.Fprintln(l.file, id); err != nil {
		return fmt.Errorf("append ledger: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync ledger: %w", err)
	}

	l.seen[id] = struct{}{}
	return nil
}

// Len returns the number of processed identifiers.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.seen)
}

// Close releases the underlying file.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
