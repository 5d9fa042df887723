package migrate

import "sort"

// MainBranch is the branch of the core schema.
const MainBranch = "__main__"

// Revision is one schema or data step. Revisions of a branch form a chain
// through Parent; DependsOn orders a revision after revisions of other
// branches.
type Revision struct {
	ID          string
	Parent      string
	DependsOn   []string
	Branch      string
	Description string
	Action      Action

	// Legacy is the last step of the old sequential tracking that this
	// revision's result covers. A database recorded at that step or later is
	// adopted at this revision. Zero when no old step maps onto it.
	Legacy int
}

func (r *Revision) branch() string {
	if r.Branch == "" {
		return MainBranch
	}
	return r.Branch
}

// Foundation seeds data once, right after a fresh database has been created.
type Foundation struct {
	Name   string
	Action Action
}

// graph is the validated shape of a revision set.
type graph struct {
	byID   map[string]*Revision
	chains map[string][]*Revision
	index  map[string]int
	order  []*Revision
}

func buildGraph(revisions []*Revision) (*graph, error) {
	g := &graph{
		byID:   make(map[string]*Revision, len(revisions)),
		chains: make(map[string][]*Revision),
		index:  make(map[string]int, len(revisions)),
	}

	position := make(map[string]int, len(revisions))
	for i, rev := range revisions {
		if rev == nil || rev.ID == "" {
			return nil, ErrValidation.New("revision %d has no id", i)
		}
		if rev.Action == nil {
			return nil, ErrValidation.New("revision %q has no action", rev.ID)
		}
		if _, dup := g.byID[rev.ID]; dup {
			return nil, ErrValidation.New("duplicate revision %q", rev.ID)
		}
		g.byID[rev.ID] = rev
		position[rev.ID] = i
	}

	roots := make(map[string]*Revision)
	children := make(map[string]*Revision)
	for _, rev := range revisions {
		if rev.Parent == "" {
			if other, ok := roots[rev.branch()]; ok {
				return nil, ErrValidation.New("branch %q has two roots: %q and %q", rev.branch(), other.ID, rev.ID)
			}
			roots[rev.branch()] = rev
			continue
		}
		parent, ok := g.byID[rev.Parent]
		if !ok {
			return nil, ErrValidation.New("revision %q: unknown parent %q", rev.ID, rev.Parent)
		}
		if parent.branch() != rev.branch() {
			return nil, ErrValidation.New("revision %q: parent %q is on branch %q", rev.ID, rev.Parent, parent.branch())
		}
		if other, ok := children[rev.Parent]; ok {
			return nil, ErrValidation.New("revision %q forks: %q and %q share it as parent", rev.Parent, other.ID, rev.ID)
		}
		children[rev.Parent] = rev
	}
	for _, rev := range revisions {
		for _, dep := range rev.DependsOn {
			if _, ok := g.byID[dep]; !ok {
				return nil, ErrValidation.New("revision %q: unknown dependency %q", rev.ID, dep)
			}
		}
	}

	for branch, root := range roots {
		chain := []*Revision{}
		for rev := root; rev != nil; rev = children[rev.ID] {
			g.index[rev.ID] = len(chain)
			chain = append(chain, rev)
		}
		g.chains[branch] = chain
	}
	if len(g.index) != len(revisions) {
		// Something is only reachable through a cycle of parents.
		for _, rev := range revisions {
			if _, ok := g.index[rev.ID]; !ok {
				return nil, ErrValidation.New("revision %q is not reachable from its branch root", rev.ID)
			}
		}
	}

	// Legacy numbers grow along a chain, and once a numbered revision is
	// followed by an unnumbered one the old tracking has ended.
	for branch, chain := range g.chains {
		last, ended := 0, false
		for _, rev := range chain {
			if rev.Legacy == 0 {
				ended = last > 0
				continue
			}
			if rev.Legacy < 0 || rev.Legacy <= last {
				return nil, ErrValidation.New("branch %q: legacy step %d of %q does not follow step %d", branch, rev.Legacy, rev.ID, last)
			}
			if ended {
				return nil, ErrValidation.New("branch %q: %q carries legacy step %d after an untracked revision", branch, rev.ID, rev.Legacy)
			}
			last = rev.Legacy
		}
	}

	order, err := topoSort(revisions, position)
	if err != nil {
		return nil, err
	}
	g.order = order
	return g, nil
}

// topoSort orders revisions so parents and dependencies come first, breaking
// ties by registration order.
func topoSort(revisions []*Revision, position map[string]int) ([]*Revision, error) {
	indegree := make(map[string]int, len(revisions))
	next := make(map[string][]*Revision)
	for _, rev := range revisions {
		if rev.Parent != "" {
			indegree[rev.ID]++
			next[rev.Parent] = append(next[rev.Parent], rev)
		}
		for _, dep := range rev.DependsOn {
			indegree[rev.ID]++
			next[dep] = append(next[dep], rev)
		}
	}

	var ready []*Revision
	for _, rev := range revisions {
		if indegree[rev.ID] == 0 {
			ready = append(ready, rev)
		}
	}

	order := make([]*Revision, 0, len(revisions))
	for len(ready) > 0 {
		sort.SliceStable(ready, func(i, j int) bool {
			return position[ready[i].ID] < position[ready[j].ID]
		})
		rev := ready[0]
		ready = ready[1:]
		order = append(order, rev)
		for _, child := range next[rev.ID] {
			indegree[child.ID]--
			if indegree[child.ID] == 0 {
				ready = append(ready, child)
			}
		}
	}
	if len(order) != len(revisions) {
		return nil, ErrValidation.New("revision dependencies contain a cycle")
	}
	return order, nil
}
