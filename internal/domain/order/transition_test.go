package order

import "testing"

func TestDecideLifecycle(t *testing.T) {
	key := Event{OrderNumber: "20250-609-0358", Site: "DP+GHD Ярославский-06"}
	newEvent := key
	newEvent.Kind = KindNewOrderRequested
	dispatched := key
	dispatched.Kind = KindOrderDispatched
	received := key
	received.Kind = KindOrderReceived

	testCases := []struct {
		name     string
		existing *Record
		event    Event
		want     Decision
	}{
		{name: "new creates", existing: nil, event: newEvent, want: Decision{Outcome: OutcomeCreated, Status: StatusNew}},
		{name: "dispatch without record", existing: nil, event: dispatched, want: Decision{Outcome: OutcomeAnomaly}},
		{name: "receipt without record", existing: nil, event: received, want: Decision{Outcome: OutcomeAnomaly}},
		{name: "repeat new", existing: &Record{Status: StatusNew}, event: newEvent, want: Decision{Outcome: OutcomeDuplicate}},
		{name: "dispatch new", existing: &Record{Status: StatusNew}, event: dispatched, want: Decision{Outcome: OutcomeUpdated, Status: StatusDispatched}},
		{name: "dispatch twice", existing: &Record{Status: StatusDispatched}, event: dispatched, want: Decision{Outcome: OutcomeDuplicate}},
		{name: "dispatch after receipt", existing: &Record{Status: StatusReceived}, event: dispatched, want: Decision{Outcome: OutcomeDuplicate}},
		{name: "receive dispatched", existing: &Record{Status: StatusDispatched}, event: received, want: Decision{Outcome: OutcomeUpdated, Status: StatusReceived}},
		{name: "receive new", existing: &Record{Status: StatusNew}, event: received, want: Decision{Outcome: OutcomeUpdated, Status: StatusReceived}},
		{name: "receive twice", existing: &Record{Status: StatusReceived}, event: received, want: Decision{Outcome: OutcomeDuplicate}},
		{name: "new on received", existing: &Record{Status: StatusReceived}, event: newEvent, want: Decision{Outcome: OutcomeDuplicate}},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := Decide(tc.existing, tc.event)
			if got != tc.want {
				t.Fatalf("Decide() = %#v, want %#v", got, tc.want)
			}
		})
	}
}

func TestMatchingUsesOrderNumberAndSite(t *testing.T) {
	records := []Record{
		{RowIndex: 2, OrderNumber: "1-1", Site: "Тверская"},
		{RowIndex: 3, OrderNumber: "1-1", Site: "Арбат"},
		{RowIndex: 4, OrderNumber: "1-1", Site: "  Тверская "},
		{RowIndex: 5, OrderNumber: "2-2", Site: "Тверская"},
	}

	got := Matching(records, NewKey("1-1", "Тверская"))
	if len(got) != 2 || got[0].RowIndex != 2 || got[1].RowIndex != 4 {
		t.Fatalf("Matching() = %#v", got)
	}

	if got := Matching(records, NewKey("3-3", "Тверская")); len(got) != 0 {
		t.Fatalf("Matching() unknown key = %#v", got)
	}
}
