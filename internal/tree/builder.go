// Package tree turns flat parent/child-linked records into nested trees,
// as used for menus, comment threads and category listings.
package tree

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfig   = errors.New("invalid tree config")
	ErrCyclicHierarchy = errors.New("cyclic hierarchy detected")
)

const (
	DefaultIDKey       = "id"
	DefaultPidKey      = "pid"
	DefaultChildrenKey = "children"
)

// Config controls Build. Every field is optional.
type Config struct {
	// OriginArr is the flat input. It is never modified.
	OriginArr []*Record `json:"originArr"`
	// OriginPid is the parent id that marks a root. Defaults to 1.
	OriginPid Value `json:"originPid"`
	// OriginIDKey and OriginPidKey name the id and parent id fields of the
	// input. Default "id" and "pid".
	OriginIDKey  string `json:"originIdKey"`
	OriginPidKey string `json:"originPidKey"`
	// ResChildrenKey holds the child list on output. Default "children".
	ResChildrenKey string `json:"resChildrenKey"`
	// ResIDKey and ResPidKey, when set, rename the id and parent id fields
	// on output; the original field names are dropped.
	ResIDKey  string `json:"resIdKey"`
	ResPidKey string `json:"resPidKey"`
}

func (c Config) withDefaults() Config {
	if !c.OriginPid.IsDefined() {
		c.OriginPid = Int(1)
	}
	if c.OriginIDKey == "" {
		c.OriginIDKey = DefaultIDKey
	}
	if c.OriginPidKey == "" {
		c.OriginPidKey = DefaultPidKey
	}
	if c.ResChildrenKey == "" {
		c.ResChildrenKey = DefaultChildrenKey
	}
	return c
}

func (c Config) validate() error {
	if c.OriginIDKey == c.OriginPidKey {
		return fmt.Errorf("%w: id and parent id share field %q", ErrInvalidConfig, c.OriginIDKey)
	}
	for _, k := range []string{c.OriginIDKey, c.OriginPidKey, c.ResIDKey, c.ResPidKey} {
		if k != "" && k == c.ResChildrenKey {
			return fmt.Errorf("%w: children field %q collides with an id field", ErrInvalidConfig, k)
		}
	}
	if c.ResIDKey != "" && c.ResIDKey == c.ResPidKey {
		return fmt.Errorf("%w: renamed id and parent id share field %q", ErrInvalidConfig, c.ResIDKey)
	}
	if _, ok := c.OriginPid.key(); !ok {
		return fmt.Errorf("%w: root id must be a scalar, got %s", ErrInvalidConfig, c.OriginPid.Kind())
	}
	for i, r := range c.OriginArr {
		if r == nil {
			return fmt.Errorf("%w: record %d is nil", ErrInvalidConfig, i)
		}
	}
	return nil
}

type builder struct {
	cfg      Config
	records  []*Record
	ids      []valueKey
	hasID    []bool
	children map[valueKey][]int
	placed   []bool
	onPath   []bool
}

// Build nests cfg.OriginArr under cfg.OriginPid.
//
// A record is a child of the record whose id equals its parent id; siblings
// keep input order. Each record is placed once, under the first chain that
// reaches it from the root. Records that cannot be reached are left out.
// When ids repeat, the first record with that id wins and later ones are
// dropped. A record pointing at itself is treated as having no such link.
// A loop reachable from the root fails with ErrCyclicHierarchy.
func Build(cfg Config) ([]*Record, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	b := newBuilder(cfg)
	root, _ := cfg.OriginPid.key()
	out, err := b.childrenOf(root)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*Record{}
	}
	return out, nil
}

func newBuilder(cfg Config) *builder {
	b := &builder{
		cfg:      cfg,
		children: make(map[valueKey][]int),
	}

	seen := make(map[valueKey]bool)
	for _, r := range cfg.OriginArr {
		id, hasID := b.idOf(r).key()
		if hasID {
			if seen[id] {
				continue
			}
			seen[id] = true
		}
		b.records = append(b.records, r)
		b.ids = append(b.ids, id)
		b.hasID = append(b.hasID, hasID)
	}

	for i, r := range b.records {
		if pid, ok := b.parentOf(r).key(); ok {
			b.children[pid] = append(b.children[pid], i)
		}
	}
	b.placed = make([]bool, len(b.records))
	b.onPath = make([]bool, len(b.records))
	return b
}

// idOf prefers the source id field and falls back to the renamed one.
func (b *builder) idOf(r *Record) Value {
	if v := r.Get(b.cfg.OriginIDKey); v.IsDefined() {
		return v
	}
	if b.cfg.ResIDKey != "" {
		return r.Get(b.cfg.ResIDKey)
	}
	return Value{}
}

func (b *builder) parentOf(r *Record) Value {
	if v := r.Get(b.cfg.OriginPidKey); v.IsDefined() {
		return v
	}
	if b.cfg.ResPidKey != "" {
		return r.Get(b.cfg.ResPidKey)
	}
	return Value{}
}

func (b *builder) childrenOf(pid valueKey) ([]*Record, error) {
	var out []*Record
	for _, i := range b.children[pid] {
		if b.onPath[i] {
			if b.hasID[i] && b.ids[i] == pid {
				continue
			}
			return nil, fmt.Errorf("%w: record %s is its own ancestor", ErrCyclicHierarchy, b.idOf(b.records[i]))
		}
		if b.placed[i] {
			continue
		}
		b.placed[i] = true

		var kids []*Record
		if b.hasID[i] {
			b.onPath[i] = true
			var err error
			kids, err = b.childrenOf(b.ids[i])
			b.onPath[i] = false
			if err != nil {
				return nil, err
			}
		}
		out = append(out, b.node(b.records[i], kids))
	}
	return out, nil
}

// node builds the output record: fields copied in order, id and parent id
// renamed in place when configured, children appended last when present.
func (b *builder) node(src *Record, kids []*Record) *Record {
	renameID := b.cfg.ResIDKey != "" && src.Has(b.cfg.OriginIDKey)
	renamePid := b.cfg.ResPidKey != "" && src.Has(b.cfg.OriginPidKey)

	out := NewRecord()
	src.Range(func(k string, v Value) bool {
		switch {
		case renameID && k == b.cfg.OriginIDKey:
			out.Set(b.cfg.ResIDKey, v.Clone())
		case renamePid && k == b.cfg.OriginPidKey:
			out.Set(b.cfg.ResPidKey, v.Clone())
		case renameID && k == b.cfg.ResIDKey, renamePid && k == b.cfg.ResPidKey:
			// superseded by the renamed source field
		case k == b.cfg.ResChildrenKey && len(kids) > 0:
		default:
			out.Set(k, v.Clone())
		}
		return true
	})

	if len(kids) > 0 {
		items := make([]Value, len(kids))
		for i, kid := range kids {
			items[i] = Object(kid)
		}
		out.Set(b.cfg.ResChildrenKey, List(items...))
	}
	return out
}

// Flatten walks nodes in pre-order and returns copies without the children
// field.
func Flatten(nodes []*Record, childrenKey string) []*Record {
	if childrenKey == "" {
		childrenKey = DefaultChildrenKey
	}
	var out []*Record
	var walk func([]*Record)
	walk = func(level []*Record) {
		for _, n := range level {
			c := n.Clone()
			c.Delete(childrenKey)
			out = append(out, c)
			walk(n.Children(childrenKey))
		}
	}
	walk(nodes)
	return out
}
