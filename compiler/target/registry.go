package target

import (
	"fmt"
	"sort"
	"sync"

	"tlog.app/go/errors"
)

type Factory func(cfg Config) (Platform, error)

var (
	platformsMu sync.RWMutex
	platforms   = map[string]Factory{}
)

// Register makes a platform available by name.
// It panics on duplicates so mistakes are caught during init.
func Register(name string, f Factory) {
	if f == nil {
		panic("target: nil factory")
	}

	platformsMu.Lock()
	defer platformsMu.Unlock()

	if _, ok := platforms[name]; ok {
		panic(fmt.Sprintf("target: platform %s already registered", name))
	}

	platforms[name] = f
}

func New(name string, cfg Config) (Platform, error) {
	platformsMu.RLock()
	f, ok := platforms[name]
	platformsMu.RUnlock()

	if !ok {
		return nil, errors.New("unknown platform %q (have %v)", name, Names())
	}

	p, err := f(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "platform %v", name)
	}

	return p, nil
}

func Names() []string {
	platformsMu.RLock()
	defer platformsMu.RUnlock()

	r := make([]string, 0, len(platforms))

	for name := range platforms {
		r = append(r, name)
	}

	sort.Strings(r)

	return r
}
