package typing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		ShortHorizon:  time.Hour,
		MediumHorizon: 24 * time.Hour,
		LongHorizon:   7 * 24 * time.Hour,
		Threshold:     0.2,
	}
}

// Scenario 1: fresh pipeline, single GET on a core path "/".
func TestScenario1_CorePathFullReliability(t *testing.T) {
	now := time.Now()
	tree := NewTree(now, testConfig())
	tree.CorePath("GET", "/")

	node := tree.Insert("GET", "/", now)

	require.NotNil(t, node)
	assert.Equal(t, 1.0, node.PathReliability)
	assert.Equal(t, 1, tree.RootShortLen())
}

// Scenario 2: unknown path, no core coverage.
func TestScenario2_UnknownPathFullReliabilityAtBirth(t *testing.T) {
	now := time.Now()
	tree := NewTree(now, testConfig())
	tree.CorePath("GET", "/")

	node := tree.Insert("GET", "/admin", now)

	assert.Equal(t, 1.0, node.PathReliability)
}

// Scenario 3: dilution of a non-core path as core traffic accumulates.
func TestScenario3_Dilution(t *testing.T) {
	now := time.Now()
	tree := NewTree(now, testConfig())
	tree.CorePath("GET", "/")

	admin := tree.Insert("GET", "/admin", now)
	require.Equal(t, 1.0, admin.PathReliability)

	for i := 0; i < 8; i++ {
		tree.Insert("GET", "/", now)
	}
	admin = tree.Insert("GET", "/admin", now)
	assert.InDelta(t, 0.2, admin.PathReliability, 1e-9)
	assert.GreaterOrEqual(t, admin.PathReliability, tree.cfg.Threshold)

	tree.Insert("GET", "/", now)
	admin = tree.Insert("GET", "/admin", now)
	assert.InDelta(t, 0.25, admin.PathReliability, 1e-9)

	for i := 0; i < 8; i++ {
		tree.Insert("GET", "/", now)
	}
	admin = tree.Insert("GET", "/admin", now)
	assert.LessOrEqual(t, admin.PathReliability, 0.2)
}

func TestEmptyPathResolvesToRootResource(t *testing.T) {
	now := time.Now()
	tree := NewTree(now, testConfig())

	node := tree.Insert("GET", "", now)
	require.NotNil(t, node)
	assert.Equal(t, "/", node.Name)
	assert.True(t, node.IsResource)
}

func TestCoreNodeNeverDegrades(t *testing.T) {
	now := time.Now()
	tree := NewTree(now, testConfig())
	tree.CorePath("GET", "/a/b")

	for i := 0; i < 50; i++ {
		tree.Insert("GET", "/a/other", now)
	}
	node := tree.Insert("GET", "/a/b", now)
	assert.Equal(t, 1.0, node.PathReliability)
}

func TestUniqueResourcePerPath(t *testing.T) {
	now := time.Now()
	tree := NewTree(now, testConfig())

	tree.Insert("GET", "/a/b/c", now)
	tree.Insert("GET", "/a/b/c", now)

	lvl := tree.methods["GET"]
	a := lvl.dirChildren["a"]
	require.NotNil(t, a)
	b := a.DirChildren["b"]
	require.NotNil(t, b)
	c := b.ResChildren["c"]
	require.NotNil(t, c)
	assert.Equal(t, 2, c.Horizons.ShortLen())
}

func TestDirAndResourceCanCoexistByName(t *testing.T) {
	now := time.Now()
	tree := NewTree(now, testConfig())

	tree.Insert("GET", "/a", now)    // "a" as a resource
	tree.Insert("GET", "/a/b", now)  // "a" as a directory

	lvl := tree.methods["GET"]
	_, hasRes := lvl.resChildren["a"]
	_, hasDir := lvl.dirChildren["a"]
	assert.True(t, hasRes)
	assert.True(t, hasDir)
}

func TestReliabilityBoundsAlwaysInUnitRange(t *testing.T) {
	now := time.Now()
	tree := NewTree(now, testConfig())
	tree.CorePath("GET", "/")

	for i := 0; i < 30; i++ {
		node := tree.Insert("GET", "/x/y/z", now)
		assert.GreaterOrEqual(t, node.PathReliability, 0.0)
		assert.LessOrEqual(t, node.PathReliability, 1.0)
	}
}

func TestHorizonInvariants(t *testing.T) {
	cfg := testConfig()
	base := time.Now()
	h := &Horizons{}

	for i := 0; i < 5; i++ {
		h.Append(base.Add(time.Duration(i)*time.Minute), cfg)
	}
	// Age everything out of the short horizon.
	ts := base.Add(2 * time.Hour)
	h.Aggregate(ts, cfg)

	for _, s := range h.Short {
		assert.LessOrEqual(t, ts.Sub(s), cfg.ShortHorizon)
	}
	for _, b := range h.Medium {
		assert.LessOrEqual(t, ts.Sub(b.Start), cfg.MediumHorizon)
	}
	for _, b := range h.Long {
		assert.LessOrEqual(t, ts.Sub(b.Start), cfg.LongHorizon)
	}
}

func TestAggregationIsIdempotent(t *testing.T) {
	cfg := testConfig()
	base := time.Now()
	h := &Horizons{}
	for i := 0; i < 10; i++ {
		h.Append(base.Add(time.Duration(i)*time.Minute), cfg)
	}

	ts := base.Add(3 * time.Hour)
	h.Aggregate(ts, cfg)
	snapshot := *h

	h.Aggregate(ts, cfg)
	assert.Equal(t, snapshot.Short, h.Short)
	assert.Equal(t, snapshot.Medium, h.Medium)
	assert.Equal(t, snapshot.Long, h.Long)
}
