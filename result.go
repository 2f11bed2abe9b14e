package hxnav

import "errors"

// Outcome is how a navigation ended.
type Outcome int

const (
	// Completed navigations swapped the page in and recorded history.
	Completed Outcome = iota
	// Dropped navigations were requested while another was in flight.
	// Nothing was fetched.
	Dropped
	// Aborted navigations failed before the page was swapped: the fetch
	// failed, the status was not 2xx or the page had no mount element.
	Aborted
	// External navigations targeted another origin and were handed to a
	// hard navigation.
	External
	// NoHistory is the outcome of Back with nothing to go back to.
	NoHistory
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Dropped:
		return "dropped"
	case Aborted:
		return "aborted"
	case External:
		return "external"
	case NoHistory:
		return "no-history"
	}
	return "unknown"
}

// Report describes a finished Go or Back call.
//
// Go never returns an error: a navigation that could not complete says so
// through Outcome and Err, and the faults of steps that failed without
// stopping the navigation (a page script throwing, an export missing, a
// transition cancelled) are collected in Faults.
//
//	rep := rt.Go(ctx, "/settings")
//	if rep.Outcome != hxnav.Completed {
//	    log.Printf("navigation %s: %v", rep.Outcome, rep.Err)
//	}
type Report struct {
	// URL is the page the navigation ended on, or the requested URL when
	// it did not complete.
	URL     string
	Outcome Outcome
	Err     error
	Faults  []error
}

// OK reports whether the navigation completed without faults.
func (r Report) OK() bool {
	return r.Outcome == Completed && len(r.Faults) == 0
}

// Error joins Err and every fault, nil when there are none.
func (r Report) Error() error {
	return errors.Join(append([]error{r.Err}, r.Faults...)...)
}

func (r *Report) fault(err error) {
	if err != nil {
		r.Faults = append(r.Faults, err)
	}
}
