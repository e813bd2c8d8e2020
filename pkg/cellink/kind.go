package cellink

// CombinatorKind is the dependency-satisfaction policy of a node type.
type CombinatorKind int

const (
	// Single nodes have at most one parent and run once it succeeded.
	// A Single node without parents is a root.
	Single CombinatorKind = iota

	// MultiAnd nodes run when every parent succeeded.
	MultiAnd

	// MultiOr nodes run when at least one parent succeeded. Failed parents
	// are hidden from the node's ParentList.
	MultiOr

	// Not nodes run when their only parent was visited and failed.
	Not

	// ParallelDisplay behaves like Single. Renderers use the kind to draw
	// quantum fan-outs differently.
	ParallelDisplay
)

// String returns the kind name.
func (k CombinatorKind) String() string {
	switch k {
	case Single:
		return "single"
	case MultiAnd:
		return "multi-and"
	case MultiOr:
		return "multi-or"
	case Not:
		return "not"
	case ParallelDisplay:
		return "parallel-display"
	default:
		return "unknown"
	}
}

func (k CombinatorKind) valid() bool {
	return k >= Single && k <= ParallelDisplay
}

// acceptsGroups reports whether a type of this kind may declare n parent groups.
// Every group becomes exactly one parent of each instance.
func (k CombinatorKind) acceptsGroups(n int) bool {
	switch k {
	case Single:
		return n <= 1
	case Not, ParallelDisplay:
		return n == 1
	case MultiOr:
		return n >= 1
	default:
		return true
	}
}

func (k CombinatorKind) arity() string {
	switch k {
	case Single:
		return "expects 0 or 1"
	case Not, ParallelDisplay:
		return "expects exactly 1"
	case MultiOr:
		return "expects at least 1"
	default:
		return "any count"
	}
}

// ForwardState records the outcome of a node's forward computation.
type ForwardState int

const (
	// Unvisited nodes have not run. Forbidden nodes stay Unvisited.
	Unvisited ForwardState = iota
	// Success means the forward computation returned true.
	Success
	// Failure means the forward computation returned false.
	Failure
	// Errored means the forward computation returned an error or panicked.
	Errored
)

// String returns the state name.
func (s ForwardState) String() string {
	switch s {
	case Unvisited:
		return "unvisited"
	case Success:
		return "success"
	case Failure:
		return "failure"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// outcome is a parent's settled result as seen by a combinator.
type outcome int

const (
	pending outcome = iota
	succeeded
	failed
	// dead parents will never run.
	dead
)

// ready reports whether a node of this kind may run given its parents' outcomes.
func (k CombinatorKind) ready(parents []outcome) bool {
	switch k {
	case MultiAnd:
		for _, o := range parents {
			if o != succeeded {
				return false
			}
		}
		return true
	case MultiOr:
		for _, o := range parents {
			if o == succeeded {
				return true
			}
		}
		return false
	case Not:
		return len(parents) == 1 && parents[0] == failed
	default:
		return len(parents) == 0 || parents[0] == succeeded
	}
}

// blocked reports whether a node of this kind can never run: a parent it
// requires failed or died.
func (k CombinatorKind) blocked(parents []outcome) bool {
	switch k {
	case MultiAnd:
		for _, o := range parents {
			if o == failed || o == dead {
				return true
			}
		}
		return false
	case MultiOr:
		if len(parents) == 0 {
			return false
		}
		for _, o := range parents {
			if o != failed && o != dead {
				return false
			}
		}
		return true
	case Not:
		return len(parents) == 1 && (parents[0] == succeeded || parents[0] == dead)
	default:
		return len(parents) > 0 && (parents[0] == failed || parents[0] == dead)
	}
}
