package order

// Outcome is the effect of applying one event to the order table.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeAnomaly   Outcome = "anomaly"
)

// Decision tells the tracker what to write. Status is the status to create
// or update to and is empty for duplicate and anomaly outcomes.
type Decision struct {
	Outcome Outcome
	Status  Status
}

// Decide applies the lifecycle rules to one existing record, or to none when
// existing is nil. Status only ever moves forward, so re-applying an event
// yields OutcomeDuplicate.
func Decide(existing *Record, ev Event) Decision {
	if existing == nil {
		if ev.Kind == KindNewOrderRequested {
			return Decision{Outcome: OutcomeCreated, Status: StatusNew}
		}
		return Decision{Outcome: OutcomeAnomaly}
	}

	var target Status
	switch ev.Kind {
	case KindNewOrderRequested:
		return Decision{Outcome: OutcomeDuplicate}
	case KindOrderDispatched:
		target = StatusDispatched
	case KindOrderReceived:
		target = StatusReceived
	default:
		return Decision{Outcome: OutcomeAnomaly}
	}

	if target.rank() <= existing.Status.rank() {
		return Decision{Outcome: OutcomeDuplicate}
	}
	return Decision{Outcome: OutcomeUpdated, Status: target}
}

// Matching returns the records with the given key, in row order.
func Matching(records []Record, key Key) []Record {
	var out []Record
	for _, record := range records {
		if record.Key() == key {
			out = append(out, record)
		}
	}
	return out
}
