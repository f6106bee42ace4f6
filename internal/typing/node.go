package typing

import "time"

// Node is a single trie node. It doubles as a directory node (has
// children, no PathReliability) or a resource node (no children, has
// PathReliability) depending on IsResource — mirroring the teacher's
// memorystore.Level, which also lets an inner node hold data.
//
// A component name may coexist as both a directory and a resource under
// the same parent; DirChildren and ResChildren are therefore disambiguated
// by kind rather than sharing one map.
type Node struct {
	Name     string
	IsResource bool
	InitTime time.Time
	Horizons Horizons
	CoreNode bool

	Reliability     float64 // both kinds
	PathReliability float64 // resource nodes only

	DirChildren map[string]*Node // directory nodes only
	ResChildren map[string]*Node // directory nodes only
}

func newDirNode(name string, initTime time.Time, core bool) *Node {
	reliability := 0.0
	if core {
		reliability = 1.0
	}
	return &Node{
		Name:        name,
		InitTime:    initTime,
		CoreNode:    core,
		Reliability: reliability,
		DirChildren: make(map[string]*Node),
		ResChildren: make(map[string]*Node),
	}
}

func newResourceNode(name string, initTime time.Time, core bool) *Node {
	reliability := 0.0
	pathReliability := 0.0
	if core {
		reliability = 1.0
		pathReliability = 1.0
	}
	return &Node{
		Name:            name,
		IsResource:      true,
		InitTime:        initTime,
		CoreNode:        core,
		Reliability:     reliability,
		PathReliability: pathReliability,
	}
}
