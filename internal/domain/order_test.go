package domain

import "testing"

func TestOrderStatusTransitions(t *testing.T) {
	cases := []struct {
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{OrderStatusCreated, OrderStatusApproved, true},
		{OrderStatusCreated, OrderStatusCancelled, true},
		{OrderStatusCreated, OrderStatusCollected, false},
		{OrderStatusCreated, OrderStatusDelivered, false},
		{OrderStatusApproved, OrderStatusCollected, true},
		{OrderStatusApproved, OrderStatusCancelled, true},
		{OrderStatusApproved, OrderStatusDelivered, false},
		{OrderStatusApproved, OrderStatusCreated, false},
		{OrderStatusCollected, OrderStatusDelivered, true},
		{OrderStatusCollected, OrderStatusCancelled, false},
		{OrderStatusCollected, OrderStatusApproved, false},
		{OrderStatusDelivered, OrderStatusCancelled, false},
		{OrderStatusDelivered, OrderStatusDelivered, false},
		{OrderStatusCancelled, OrderStatusCreated, false},
		{OrderStatusCancelled, OrderStatusApproved, false},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestAddressSnapshot(t *testing.T) {
	addr := Address{
		ID:        7,
		UserID:    1,
		City:      "Springfield",
		Street:    "Main St",
		Building:  "10",
		Apartment: "4b",
		PostCode:  "62704",
	}

	snap := addr.Snapshot()
	if snap.City != "Springfield" || snap.Street != "Main St" || snap.Building != "10" {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	if snap.Apartment != "4b" || snap.PostCode != "62704" {
		t.Errorf("optional fields lost in snapshot: %+v", snap)
	}
}
