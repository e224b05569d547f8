package test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestElection_TwoNodesDistinctValues(t *testing.T) {
	cluster := CreateCluster(t, []uint16{50, 100})
	defer cluster.Off()

	require.True(t, cluster.AllAgreeOn("fe80::1", 15*time.Second),
		"nodes did not agree on the node carrying the minimum")
}

func TestElection_TwoNodesTieBreakOnAddress(t *testing.T) {
	cluster := CreateCluster(t, []uint16{42, 42})
	defer cluster.Off()

	// Equal weights: the lexicographically smaller address wins.
	require.True(t, cluster.AllAgreeOn("fe80::1", 15*time.Second))
}

func TestElection_ThreeNodeChainOfImprovements(t *testing.T) {
	cluster := CreateCluster(t, []uint16{200, 100, 30})
	defer cluster.Off()

	require.True(t, cluster.AllAgreeOn("fe80::3", 20*time.Second))
}

func TestElection_SingleNodeReportsItself(t *testing.T) {
	cluster := CreateCluster(t, []uint16{7})
	defer cluster.Off()

	// Give the node time to run discovery and several election rounds.
	time.Sleep(1500 * time.Millisecond)

	assert.Equal(t, "fe80::1", cluster.Leader(0))
	// With nobody to confirm a round, convergence never latches.
	assert.False(t, cluster.Converged(0))
}

func TestElection_LateJoinerDoesNotTriggerReelection(t *testing.T) {
	cluster := CreateCluster(t, []uint16{50, 100})
	defer cluster.Off()

	require.True(t, cluster.AllAgreeOn("fe80::1", 15*time.Second))

	// A latecomer with the globally smallest weight arrives after the
	// latch: the converged nodes must not move.
	cluster.AddNode("fe80::9", 1)
	time.Sleep(1500 * time.Millisecond)

	assert.Equal(t, "fe80::1", cluster.Leader(0))
	assert.Equal(t, "fe80::1", cluster.Leader(1))
	// The latecomer only ever sees itself.
	assert.Equal(t, "fe80::9", cluster.Leader(2))
	assert.False(t, cluster.Converged(2))
}

func TestElection_QueryAvailableFromStartup(t *testing.T) {
	cluster := CreateCluster(t, []uint16{80})
	defer cluster.Off()

	// The query is serviced in every phase; right after startup it
	// reports the address announced by the transport.
	leader := cluster.Leader(0)
	if leader != "fe80::1" && leader != "unknown" {
		t.Errorf("unexpected leader %q before convergence", leader)
	}
}
