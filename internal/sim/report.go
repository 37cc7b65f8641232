package sim

import (
	"fmt"
	"io"
	"strings"

	"github.com/randalmurphal/tickgraph/pkg/tickgraph/journal"
)

// outcomeOrder fixes the order of the journal summary.
var outcomeOrder = []journal.Outcome{
	journal.OutcomeDone,
	journal.OutcomePending,
	journal.OutcomeFailed,
	journal.OutcomeDeferred,
}

// JournalSummary counts journal records per outcome.
func (r *Result) JournalSummary() map[journal.Outcome]int {
	counts := make(map[journal.Outcome]int)
	for _, rec := range r.Journal {
		counts[rec.Outcome]++
	}
	return counts
}

// WriteText renders the result as a human-readable trace:
//
//	scenario: cadence
//	   0.000  frame/input tick
//	   ...
//	wakeups: 5  posts: 5  deferrals: 0  failures: 0
//	journal: 5 records (done: 5)
func (r *Result) WriteText(w io.Writer) error {
	var b strings.Builder

	fmt.Fprintf(&b, "scenario: %s\n", r.Scenario)
	for _, inv := range r.Invocations {
		fmt.Fprintf(&b, "%8.3f  %s/%s", inv.At, inv.Event, inv.Behavior)
		if inv.Arg != nil {
			fmt.Fprintf(&b, " %v", inv.Arg)
		}
		b.WriteByte('\n')
	}

	fmt.Fprintf(&b, "wakeups: %d  posts: %d  deferrals: %d  failures: %d\n",
		r.Stats.Wakeups, r.Stats.Posts, r.Stats.Deferrals, r.Stats.Failures)

	counts := r.JournalSummary()
	var parts []string
	for _, o := range outcomeOrder {
		if n := counts[o]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d", o, n))
		}
	}
	fmt.Fprintf(&b, "journal: %d records", len(r.Journal))
	if len(parts) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(parts, ", "))
	}
	b.WriteByte('\n')

	if len(r.Errors) > 0 {
		b.WriteString("errors:\n")
		for _, msg := range r.Errors {
			fmt.Fprintf(&b, "  %s\n", msg)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
