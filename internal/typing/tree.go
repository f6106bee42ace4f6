package typing

import (
	"sync"
	"time"

	"github.com/cc-sentinel/sentinel/internal/message"
)

// rootLevel is the per-method partition of the trie's first level. The
// root itself tracks one shared set of horizons across every method (step
// 1 of insertion appends to it regardless of method); the per-method
// separation only affects where a path's components are looked up.
type rootLevel struct {
	dirChildren map[string]*Node
	resChildren map[string]*Node
}

func newRootLevel() *rootLevel {
	return &rootLevel{
		dirChildren: make(map[string]*Node),
		resChildren: make(map[string]*Node),
	}
}

// Tree is the path-reliability trie described in spec §4.4. A single
// tree-wide mutex serializes insertion and the reliability walk against
// each other — acceptable given per-request work is O(number of nodes),
// a few hundred at the scales this is designed for.
type Tree struct {
	mu sync.Mutex

	initTime time.Time
	horizons Horizons
	cfg      Config

	methods map[string]*rootLevel
}

// NewTree creates the root, timestamped at now. Core nodes are added
// afterwards via Bootstrap.
func NewTree(now time.Time, cfg Config) *Tree {
	return &Tree{
		initTime: now,
		cfg:      cfg,
		methods:  make(map[string]*rootLevel),
	}
}

func (t *Tree) methodLevel(method string) *rootLevel {
	lvl, ok := t.methods[method]
	if !ok {
		lvl = newRootLevel()
		t.methods[method] = lvl
	}
	return lvl
}

// CorePath declares a path as part of the a-priori "core" topology for the
// given method. Called during startup bootstrap only: core nodes receive
// no timestamps, their InitTime is inherited from the root, and
// Reliability/PathReliability are pinned to 1.0 forever.
func (t *Tree) CorePath(method, path string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	lvl := t.methodLevel(method)
	components := message.SplitPath(path)

	if len(components) == 0 {
		if _, ok := lvl.resChildren["/"]; !ok {
			lvl.resChildren["/"] = newResourceNode("/", t.initTime, true)
		}
		return
	}

	dirChildren, resChildren := lvl.dirChildren, lvl.resChildren
	for i, name := range components {
		last := i == len(components)-1
		if last {
			if _, ok := resChildren[name]; !ok {
				resChildren[name] = newResourceNode(name, t.initTime, true)
			}
			return
		}
		child, ok := dirChildren[name]
		if !ok {
			child = newDirNode(name, t.initTime, true)
			dirChildren[name] = child
		}
		dirChildren, resChildren = child.DirChildren, child.ResChildren
	}
}

// Insert records an observation of method+path at time now, creating any
// missing nodes along the way, recomputes reliability top-down, and
// returns the resolved resource node so the caller can inspect its
// PathReliability.
func (t *Tree) Insert(method, path string, now time.Time) *Node {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.horizons.Append(now, t.cfg)

	lvl := t.methodLevel(method)
	components := message.SplitPath(path)

	if len(components) == 0 {
		res := t.getOrCreateResource(lvl.resChildren, "/", now)
		t.recomputeLocked(now)
		return res
	}

	dirChildren, resChildren := lvl.dirChildren, lvl.resChildren
	var terminal *Node
	for i, name := range components {
		last := i == len(components)-1
		if last {
			terminal = t.getOrCreateResource(resChildren, name, now)
			break
		}
		dir := t.getOrCreateDir(dirChildren, name, now)
		dirChildren, resChildren = dir.DirChildren, dir.ResChildren
	}

	t.recomputeLocked(now)
	return terminal
}

func (t *Tree) getOrCreateDir(children map[string]*Node, name string, now time.Time) *Node {
	node, ok := children[name]
	if !ok {
		node = newDirNode(name, now, false)
		children[name] = node
	}
	if !node.CoreNode {
		node.Horizons.Append(now, t.cfg)
	}
	return node
}

func (t *Tree) getOrCreateResource(children map[string]*Node, name string, now time.Time) *Node {
	node, ok := children[name]
	if !ok {
		node = newResourceNode(name, now, false)
		children[name] = node
	}
	if !node.CoreNode {
		node.Horizons.Append(now, t.cfg)
	}
	return node
}

// recomputeLocked walks the whole tree top-down recomputing Reliability
// and PathReliability, per spec §4.4.4. Called with t.mu held.
func (t *Tree) recomputeLocked(now time.Time) {
	rootShort := t.horizons.ShortLen()
	for _, lvl := range t.methods {
		t.walkLevel(lvl.dirChildren, lvl.resChildren, rootShort, 0, 0, 1.0, now)
	}
}

func (t *Tree) walkLevel(dirChildren, resChildren map[string]*Node, parentShort, parentMedium, parentLong int, carry float64, now time.Time) {
	for _, d := range dirChildren {
		d.Reliability = t.nodeReliability(d, parentShort, parentMedium, parentLong, now)
		childCarry := carry * d.Reliability
		pShort := d.Horizons.ShortLen()
		pMedium := d.Horizons.MediumSum()
		pLong := d.Horizons.LongSum()
		t.walkLevel(d.DirChildren, d.ResChildren, pShort, pMedium, pLong, childCarry, now)
	}
	for _, r := range resChildren {
		r.Reliability = t.nodeReliability(r, parentShort, parentMedium, parentLong, now)
		r.PathReliability = carry * r.Reliability
	}
}

func (t *Tree) nodeReliability(n *Node, parentShort, parentMedium, parentLong int, now time.Time) float64 {
	if n.CoreNode {
		return 1.0
	}

	age := now.Sub(n.InitTime)
	switch {
	case age < t.cfg.ShortHorizon:
		if parentShort == 0 {
			return 0.0
		}
		return float64(n.Horizons.ShortLen()) / float64(parentShort)
	case age < t.cfg.MediumHorizon:
		denom := parentShort + parentMedium
		if denom == 0 {
			return 0.0
		}
		return float64(n.Horizons.ShortLen()+n.Horizons.MediumSum()) / float64(denom)
	default:
		denom := parentShort + parentMedium + parentLong
		if denom == 0 {
			return 0.0
		}
		return float64(n.Horizons.Total()) / float64(denom)
	}
}

// RootShortLen exposes the root's short-term observation count, used by
// tests.
func (t *Tree) RootShortLen() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.horizons.ShortLen()
}
