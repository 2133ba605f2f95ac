package isolated

import "prologns/internal/query"

// Unlimited disables the result cap.
const Unlimited = query.Unlimited

// CallOption tunes a single Query, Consult or mutation call. Options that do
// not apply to a call are ignored.
type CallOption func(*call)

type call struct {
	maxResults  int
	catchErrors bool
	normalize   bool
	tempDir     string
}

// newCall applies opts over the defaults. catchErrors is the default error
// policy of the calling operation.
func newCall(catchErrors bool, opts []CallOption) call {
	c := call{
		maxResults:  Unlimited,
		catchErrors: catchErrors,
		normalize:   true,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c call) queryOptions() query.Options {
	return query.Options{
		MaxResults:  c.maxResults,
		CatchErrors: c.catchErrors,
		Normalize:   c.normalize,
	}
}

// MaxResults caps the number of solutions. Negative means unlimited.
func MaxResults(n int) CallOption {
	return func(c *call) { c.maxResults = n }
}

// CatchErrors sets whether engine execution errors are swallowed.
func CatchErrors(catch bool) CallOption {
	return func(c *call) { c.catchErrors = catch }
}

// Normalize sets whether solutions are normalized. Pass false to receive raw
// terms.
func Normalize(normalize bool) CallOption {
	return func(c *call) { c.normalize = normalize }
}

// TempDir overrides the staging directory for one consult.
func TempDir(dir string) CallOption {
	return func(c *call) { c.tempDir = dir }
}
