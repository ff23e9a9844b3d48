// Command arbor-sim simulates peers editing one replicated tree: every peer
// forks a shared trunk, edits concurrently, then rebases and merges in a
// seeded random order. The run fails if any replica's final state diverges.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"

	"github.com/arborlab/arbor/internal/branch"
	"github.com/arborlab/arbor/internal/changetest"
	"github.com/arborlab/arbor/internal/rebase"
)

func main() {
	var (
		peers   int
		edits   int
		seed    int64
		verbose bool
	)
	flag.IntVar(&peers, "peers", 4, "Number of simulated peers")
	flag.IntVar(&edits, "edits", 5, "Edits per peer")
	flag.Int64Var(&seed, "seed", 1, "Random seed for the interleaving")
	flag.BoolVar(&verbose, "v", false, "Log every rebase/merge")
	flag.Parse()

	if peers < 1 || edits < 1 {
		log.Fatal("arbor-sim: -peers and -edits must be positive")
	}

	rng := rand.New(rand.NewSource(seed))
	rebaser := changetest.Rebaser{}
	origin := rebase.NewOriginCommit[changetest.Change]()
	trunk := branch.New[changetest.Change](origin, rebaser, rebase.NewSessionTagger())

	log.Printf("arbor-sim: %d peers, %d edits each, seed %d", peers, edits, seed)

	type peer struct {
		id     int
		branch *branch.Branch[changetest.Change]
	}
	replicas := make([]*peer, peers)
	for i := range replicas {
		b := trunk.Fork()
		replicas[i] = &peer{id: i, branch: b}
		ed, err := b.Editor(changetest.Family{})
		if err != nil {
			log.Fatalf("arbor-sim: build editor: %v", err)
		}
		marker := ed.(*changetest.Editor)
		for j := 0; j < edits; j++ {
			marker.Mark(i*edits + j + 1)
		}
	}

	// Each round one random peer syncs: rebase its commits onto the trunk,
	// then the trunk merges them, standing in for the sequencing service.
	for _, i := range rng.Perm(peers) {
		p := replicas[i]
		if err := p.branch.RebaseOnto(trunk); err != nil {
			log.Fatalf("arbor-sim: peer %d rebase: %v", p.id, err)
		}
		if err := trunk.Merge(p.branch); err != nil {
			log.Fatalf("arbor-sim: trunk merge of peer %d: %v", p.id, err)
		}
		if verbose {
			log.Printf("arbor-sim: peer %d sequenced, trunk head %s", p.id, trunk.GetHead().Revision)
		}
	}

	// Every peer catches up with the fully sequenced trunk.
	want := materialize(trunk.GetHead())
	for _, p := range replicas {
		if err := p.branch.RebaseOnto(trunk); err != nil {
			log.Fatalf("arbor-sim: peer %d final rebase: %v", p.id, err)
		}
		got := materialize(p.branch.GetHead())
		if fmt.Sprint(got) != fmt.Sprint(want) {
			log.Fatalf("arbor-sim: peer %d diverged:\n  peer  %v\n  trunk %v", p.id, got, want)
		}
		if verbose {
			log.Printf("arbor-sim: peer %d converged (%d elements)", p.id, len(got))
		}
	}
	log.Printf("arbor-sim: all %d replicas converged on %d elements", peers, len(want))
}

// materialize folds the commit chain below head into a state value.
func materialize(head *rebase.GraphCommit[changetest.Change]) []int {
	var path []*rebase.GraphCommit[changetest.Change]
	origin := rebase.FindAncestor(head, func(c *rebase.GraphCommit[changetest.Change]) bool {
		return c.Revision == rebase.NullRevision
	}, &path)
	if origin == nil {
		log.Fatal("arbor-sim: head does not reach the origin commit")
	}
	var state []int
	for _, c := range path {
		state = changetest.Apply(state, c.Change)
	}
	return state
}
