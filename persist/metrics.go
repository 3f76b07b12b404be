package persist

import (
	"github.com/uber-go/tally/v4"
)

// Metrics is a struct for tracking the counters of the persistence layer,
// i.e. how many records were created, updated, deleted or selected and how
// many operations could not be routed to a partition.
type Metrics struct {
	Create     tally.Counter
	CreateFail tally.Counter

	Update     tally.Counter
	UpdateFail tally.Counter
	NoopUpdate tally.Counter

	Delete     tally.Counter
	DeleteFail tally.Counter

	Select     tally.Counter
	SelectFail tally.Counter

	RoutingError  tally.Counter
	PartitionMove tally.Counter

	Latency tally.Timer
}

// NewMetrics returns a new Metrics struct, with all metrics initialized and
// rooted at the given tally.Scope.
func NewMetrics(scope tally.Scope) *Metrics {
	recordScope := scope.SubScope("record")
	successScope := recordScope.Tagged(map[string]string{"type": "success"})
	failScope := recordScope.Tagged(map[string]string{"type": "fail"})

	routingScope := scope.SubScope("routing")

	return &Metrics{
		Create:     successScope.Counter("create"),
		CreateFail: failScope.Counter("create"),
		Update:     successScope.Counter("update"),
		UpdateFail: failScope.Counter("update"),
		NoopUpdate: recordScope.Counter("noop_update"),
		Delete:     successScope.Counter("delete"),
		DeleteFail: failScope.Counter("delete"),
		Select:     successScope.Counter("select"),
		SelectFail: failScope.Counter("select"),

		RoutingError:  routingScope.Counter("routing_error"),
		PartitionMove: routingScope.Counter("partition_move"),

		Latency: recordScope.Timer("latency"),
	}
}

func (m *Metrics) observe(op string, err error) {
	var ok, fail tally.Counter
	switch op {
	case opCreate:
		ok, fail = m.Create, m.CreateFail
	case opUpdate:
		ok, fail = m.Update, m.UpdateFail
	case opDelete:
		ok, fail = m.Delete, m.DeleteFail
	default:
		ok, fail = m.Select, m.SelectFail
	}
	if err != nil {
		fail.Inc(1)
		return
	}
	ok.Inc(1)
}
