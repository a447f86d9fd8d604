package hosts

import (
	"bufio"
	"fmt"
	"io"
	"net/netip"
	"os"
	"strings"
	"sync/atomic"

	"github.com/treemana/gorelay/log"
)

// Table maps fully qualified names to addresses. The unspecified
// address (0.0.0.0 or ::) marks a name as blocked. Lookups read an
// immutable snapshot; reloads swap the whole snapshot in one store.
type Table struct {
	path string
	m    atomic.Pointer[map[string]netip.Addr]

	stop chan struct{}
	done chan struct{}
}

// New builds a table from an already decoded mapping. Keys are
// normalized the same way lookups are.
func New(m map[string]netip.Addr) *Table {
	normalized := make(map[string]netip.Addr, len(m))
	for name, addr := range m {
		normalized[normalize(name)] = addr
	}
	t := &Table{}
	t.m.Store(&normalized)
	return t
}

// Load reads a hosts style file: one address followed by one or more
// names per line, whitespace separated, # starts a comment. The first
// binding of a name wins.
func Load(path string) (*Table, error) {
	m, err := parseFile(path)
	if err != nil {
		return nil, err
	}

	t := &Table{path: path}
	t.m.Store(&m)
	return t, nil
}

// Lookup is safe for concurrent use with a reload.
func (t *Table) Lookup(name string) (netip.Addr, bool) {
	addr, ok := (*t.m.Load())[normalize(name)]
	return addr, ok
}

func (t *Table) Len() int {
	return len(*t.m.Load())
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSuffix(name, "."))
}

func parseFile(path string) (map[string]netip.Addr, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	return parse(file)
}

func parse(r io.Reader) (map[string]netip.Addr, error) {
	m := make(map[string]netip.Addr)

	scanner := bufio.NewScanner(r)
	var line int
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}

		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 2 {
			return nil, fmt.Errorf("hosts line %d: address without name", line)
		}

		addr, err := netip.ParseAddr(fields[0])
		if err != nil {
			return nil, fmt.Errorf("hosts line %d: %w", line, err)
		}

		for _, name := range fields[1:] {
			key := normalize(name)
			if _, ok := m[key]; ok {
				log.Sugar.Warnf("hosts line %d: duplicate name %s ignored", line, name)
				continue
			}
			m[key] = addr
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return m, nil
}
