package prof

// Options selects what a Session records. Empty paths are skipped.
type Options struct {
	// CPU streams a CPU profile for the whole session.
	CPU string

	// Heap, Block, Mutex and Goroutine are snapshots written by Stop.
	// Block and Mutex also switch on sampling for the session.
	Heap      string
	Block     string
	Mutex     string
	Goroutine string

	// Addr serves /debug/pprof/ while the session runs.
	Addr string
}

// Enabled reports whether opts asks for anything.
func (o Options) Enabled() bool {
	return o != Options{}
}

// snapshots lists the profiles Stop writes, in order.
func (o Options) snapshots() []snapshot {
	var s []snapshot
	for _, p := range []snapshot{
		{"heap", o.Heap},
		{"block", o.Block},
		{"mutex", o.Mutex},
		{"goroutine", o.Goroutine},
	} {
		if p.path != "" {
			s = append(s, p)
		}
	}
	return s
}

type snapshot struct {
	name string
	path string
}
