package seqdiff

// Op classifies one record of an edit script.
type Op int

const (
	// OpRetained marks an element present in both sequences at the same
	// relative position.
	OpRetained Op = iota
	// OpAdded marks an element present only in the new sequence.
	OpAdded
	// OpDeleted marks an element present only in the old sequence.
	OpDeleted
)

func (op Op) String() string {
	switch op {
	case OpRetained:
		return "retained"
	case OpAdded:
		return "added"
	case OpDeleted:
		return "deleted"
	}
	return "unknown"
}

// Record is one entry of an edit script. Index is the element's position in
// its own sequence: the new sequence for added and retained records, the old
// sequence for deleted records. Moved, when not -1, is the index in the
// counterpart sequence this record was paired with as a move: a deleted
// record's Moved points at the addition it reappears as, and vice versa.
type Record[T comparable] struct {
	Op    Op
	Value T
	Index int
	Moved int
}

type config struct {
	sparse bool
	// moveLimit: -1 selects the default budget (10x the shorter length),
	// 0 disables the limit, positive values are used as-is.
	moveLimit int
}

// Option configures Diff.
type Option func(*config)

// Sparse omits retained records from the script, leaving only additions and
// deletions.
func Sparse() Option {
	return func(c *config) { c.sparse = true }
}

// MoveLimit bounds the number of consecutive failed comparisons move pairing
// may perform before giving up. The default budget is ten times the shorter
// sequence's length.
func MoveLimit(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.moveLimit = n
		}
	}
}

// NoMoveLimit removes the move pairing budget entirely.
func NoMoveLimit() Option {
	return func(c *config) { c.moveLimit = 0 }
}

// Diff computes an edit script transforming old into new. Applying the
// script's deletions to old and its additions at their indices yields new;
// retained records carry the elements common to both.
func Diff[T comparable](old, new []T, opts ...Option) []Record[T] {
	cfg := config{moveLimit: -1}
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(old) < len(new) {
		return compare(old, new, OpAdded, OpDeleted, cfg)
	}
	return compare(new, old, OpDeleted, OpAdded, cfg)
}

// compare diffs with the shorter sequence on the row axis. notInSml is the
// status of elements found only in big, notInBig of elements found only in
// sml; the caller picks them so the script always reads in old/new terms.
func compare[T comparable](sml, big []T, notInSml, notInBig Op, cfg config) []Record[T] {
	smlMax := len(sml)
	bigMax := len(big)
	// The band covers one column left of the diagonal and the length
	// difference (at least one) to the right; an optimal path cannot leave it.
	compareRange := bigMax - smlMax
	if compareRange == 0 {
		compareRange = 1
	}
	maxDistance := smlMax + bigMax + 1

	// Distances are stored plus one so a zero cell means "outside the band".
	rows := make([][]int, smlMax+1)
	mins := make([]int, smlMax+1)
	at := func(i, j int) int {
		row := rows[i]
		k := j - mins[i]
		if k < 0 || k >= len(row) {
			return 0
		}
		return row[k]
	}

	for i := 0; i <= smlMax; i++ {
		minJ := 0
		if i > 1 {
			minJ = i - 1
		}
		maxJ := i + compareRange
		if maxJ > bigMax {
			maxJ = bigMax
		}
		row := make([]int, maxJ-minJ+1)
		rows[i] = row
		mins[i] = minJ
		for j := minJ; j <= maxJ; j++ {
			var v int
			switch {
			case j == 0:
				v = i + 1
			case i == 0:
				v = j + 1
			case sml[i-1] == big[j-1]:
				v = at(i-1, j-1)
			default:
				north := at(i-1, j)
				if north == 0 {
					north = maxDistance
				}
				west := at(i, j-1)
				if west == 0 {
					west = maxDistance
				}
				if north < west {
					v = north + 1
				} else {
					v = west + 1
				}
			}
			row[j-minJ] = v
		}
	}

	// Backtrack from the bottom-right corner. The script comes out in
	// reverse order and is flipped at the end.
	newIsBig := notInSml == OpAdded
	var script []*Record[T]
	var onlyInBig, onlyInSml []*Record[T]
	for i, j := smlMax, bigMax; i != 0 || j != 0; {
		distance := at(i, j) - 1
		if j != 0 && distance == at(i, j-1) {
			j--
			rec := &Record[T]{Op: notInSml, Value: big[j], Index: j, Moved: -1}
			onlyInBig = append(onlyInBig, rec)
			script = append(script, rec)
		} else if i != 0 && distance == at(i-1, j) {
			i--
			rec := &Record[T]{Op: notInBig, Value: sml[i], Index: i, Moved: -1}
			onlyInSml = append(onlyInSml, rec)
			script = append(script, rec)
		} else {
			i--
			j--
			if !cfg.sparse {
				index := i
				if newIsBig {
					index = j
				}
				script = append(script, &Record[T]{Op: OpRetained, Value: big[j], Index: index, Moved: -1})
			}
		}
	}

	limit := cfg.moveLimit
	if limit < 0 {
		limit = smlMax * 10
	}
	if newIsBig {
		LinkMoves(onlyInSml, onlyInBig, limit)
	} else {
		LinkMoves(onlyInBig, onlyInSml, limit)
	}

	out := make([]Record[T], len(script))
	for i, rec := range script {
		out[len(script)-1-i] = *rec
	}
	return out
}

// LinkMoves pairs deletions with additions of equal value, recording each
// pairing in both records' Moved fields. Pairing scans in order and stops
// once limit consecutive comparisons fail without a match; a limit of zero
// means unlimited. It is exported for callers that derive deletions and
// additions directly from a known operation instead of running Diff.
func LinkMoves[T comparable](deletions, additions []*Record[T], limit int) {
	if len(deletions) == 0 || len(additions) == 0 {
		return
	}
	// Consumed candidates are spliced out of a copy; the caller's slice must
	// stay intact.
	pool := append([]*Record[T](nil), additions...)
	failed := 0
	for _, del := range deletions {
		if limit > 0 && failed >= limit {
			break
		}
		r := 0
		for ; r < len(pool); r++ {
			if del.Value == pool[r].Value {
				del.Moved = pool[r].Index
				pool[r].Moved = del.Index
				pool = append(pool[:r], pool[r+1:]...)
				// A match resets the consecutive-failure count.
				failed = 0
				r = 0
				break
			}
		}
		failed += r
	}
}
