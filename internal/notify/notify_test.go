package notify

import (
	"testing"
	"time"
)

func TestQueue_NotifyAssignsIncreasingIDs(t *testing.T) {
	q := NewQueue()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	q.now = func() time.Time { return fixed }

	a := q.Notify(SeverityError, "updateRoom", "boom")
	b := q.Notify(SeverityWarning, "refreshStandardZones", "slow")

	if a.ID == 0 || b.ID <= a.ID {
		t.Fatalf("ids = %d, %d, want increasing from 1", a.ID, b.ID)
	}
	if !a.Timestamp.Equal(fixed) {
		t.Fatalf("timestamp = %v, want %v", a.Timestamp, fixed)
	}
	list := q.List()
	if len(list) != 2 || list[0].Operation != "updateRoom" || list[1].Severity != SeverityWarning {
		t.Fatalf("List = %#v", list)
	}
}

func TestQueue_DismissRemovesOnlyTarget(t *testing.T) {
	q := NewQueue()
	a := q.Notify(SeverityError, "a", "x")
	b := q.Notify(SeverityError, "b", "y")

	if !q.Dismiss(a.ID) {
		t.Fatalf("Dismiss(%d) = false, want true", a.ID)
	}
	if q.Dismiss(a.ID) {
		t.Fatalf("second Dismiss should report false")
	}
	list := q.List()
	if len(list) != 1 || list[0].ID != b.ID {
		t.Fatalf("List after dismiss = %#v, want only %d", list, b.ID)
	}
}

func TestQueue_SubscribeSeesChanges(t *testing.T) {
	q := NewQueue()
	var lens []int
	unsubscribe := q.Subscribe(func(items []SyncNotification) { lens = append(lens, len(items)) })

	n := q.Notify(SeverityInfo, "op", "msg")
	q.Dismiss(n.ID)
	q.Notify(SeverityInfo, "op", "msg")
	q.Clear()
	unsubscribe()
	q.Notify(SeverityInfo, "op", "msg")

	want := []int{1, 0, 1, 0}
	if len(lens) != len(want) {
		t.Fatalf("subscriber calls = %v, want %v", lens, want)
	}
	for i := range want {
		if lens[i] != want[i] {
			t.Fatalf("subscriber calls = %v, want %v", lens, want)
		}
	}
	if q.Len() != 1 {
		t.Fatalf("Len = %d, want 1", q.Len())
	}
}

func TestQueue_ListIsCopy(t *testing.T) {
	q := NewQueue()
	q.Notify(SeverityError, "op", "msg")
	list := q.List()
	list[0].Message = "changed"
	if q.List()[0].Message != "msg" {
		t.Fatalf("List should return a copy")
	}
}
