package feed

import (
	"context"
	"testing"
)

func TestRoutingKey(t *testing.T) {
	tests := []struct {
		event Event
		want  string
	}{
		{Event{Kind: KindBid, Status: "pending"}, "bid.pending"},
		{Event{Kind: KindResource, Status: "judged"}, "resource.judged"},
		{Event{Kind: KindLot, Status: "open"}, "lot.status"},
		{Event{Kind: KindTender, Status: "dispute"}, "tender.status"},
		{Event{Kind: KindMessage, Status: "bid"}, "message.appended"},
	}
	for _, tt := range tests {
		if got := tt.event.RoutingKey(); got != tt.want {
			t.Fatalf("RoutingKey(%s/%s) = %q, want %q", tt.event.Kind, tt.event.Status, got, tt.want)
		}
	}
}

func TestRecorderCount(t *testing.T) {
	var r Recorder
	ctx := context.Background()
	r.Publish(ctx, Event{Kind: KindBid, Status: "pending"})
	r.Publish(ctx, Event{Kind: KindBid, Status: "active"})
	r.Publish(ctx, Event{Kind: KindBid, Status: "pending"})

	if n := r.Count(KindBid, "pending"); n != 2 {
		t.Fatalf("pending events = %d, want 2", n)
	}
	if n := len(r.Events()); n != 3 {
		t.Fatalf("events = %d, want 3", n)
	}
}
