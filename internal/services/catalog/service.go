package catalog

import (
	"bufio"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"slices"
	"strings"
	"sync"
)

//go:embed items.txt
var defaultItems string

var itemIDPattern = regexp.MustCompile(`^[a-z0-9_.-]+:[a-z0-9_/.-]+$`)

// ErrCatalogEmpty is returned when a source yields no item ids
var ErrCatalogEmpty = errors.New("target items catalog is empty")

// Service holds the pool of target items a match can be rolled against
type Service struct {
	logger *slog.Logger

	mu    sync.RWMutex
	items []string
}

// New creates a catalog preloaded with the built-in item pool
func New(logger *slog.Logger) *Service {
	items, err := Parse(strings.NewReader(defaultItems))
	if err != nil {
		panic(fmt.Sprintf("built-in target items are invalid: %v", err))
	}
	return &Service{
		logger: logger.With(slog.String("component", "catalog")),
		items:  items,
	}
}

// LoadFromFile replaces the pool with the items listed in path
func (s *Service) LoadFromFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("target items file %q: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("target items path %q is not a regular file", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	items, err := Parse(file)
	if err != nil {
		return fmt.Errorf("target items file %q: %w", path, err)
	}

	s.setItems(items)
	s.logger.Info("target items loaded", slog.String("path", path), slog.Int("count", len(items)))
	return nil
}

// LoadItems directly replaces the pool (useful for testing)
func (s *Service) LoadItems(items []string) error {
	parsed, err := Parse(strings.NewReader(strings.Join(items, "\n")))
	if err != nil {
		return err
	}
	s.setItems(parsed)
	return nil
}

func (s *Service) setItems(items []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = items
}

// Items returns a copy of the current pool in file order
func (s *Service) Items() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items)
}

// Count returns the number of items in the pool
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Parse reads one item id per line. Text after '#' is a comment, blank
// lines are skipped, duplicates keep their first position.
func Parse(r io.Reader) ([]string, error) {
	var items []string
	seen := make(map[string]struct{})

	scanner := bufio.NewScanner(r)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !itemIDPattern.MatchString(line) {
			return nil, fmt.Errorf("invalid item id %q at line %d", line, lineNumber)
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		items = append(items, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(items) == 0 {
		return nil, ErrCatalogEmpty
	}
	return items, nil
}

// Interface check
type ServiceInterface interface {
	Items() []string
	Count() int
	LoadFromFile(path string) error
	LoadItems(items []string) error
}

var _ ServiceInterface = (*Service)(nil)
