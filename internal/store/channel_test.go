package store

import (
	"fmt"
	"testing"
)

func TestChannel_Append(t *testing.T) {
	var ids allocator
	ch := newChannel("proj-x")

	first := ch.append(&ids, "claude", "hello")
	second := ch.append(&ids, "codex", "ack")

	if first.ID != 1 {
		t.Fatalf("expected first id 1, got %d", first.ID)
	}
	if second.ID != 2 {
		t.Fatalf("expected second id 2, got %d", second.ID)
	}
	if first.Channel != "proj-x" {
		t.Fatalf("expected channel proj-x, got %s", first.Channel)
	}
	if first.Sender != "claude" || first.Text != "hello" {
		t.Fatalf("message fields not preserved: %+v", first)
	}
	if first.CreatedAt.IsZero() {
		t.Fatal("expected CreatedAt to be set")
	}
	if second.CreatedAt.Before(first.CreatedAt) {
		t.Fatal("expected timestamps to be non-decreasing")
	}
}

func TestChannel_MessagesSince(t *testing.T) {
	var ids allocator
	ch := newChannel("proj-x")
	for i := 0; i < 5; i++ {
		ch.append(&ids, "claude", fmt.Sprintf("msg-%d", i))
	}

	tests := []struct {
		name    string
		sinceID int64
		want    []int64
	}{
		{"from beginning", 0, []int64{1, 2, 3, 4, 5}},
		{"from middle", 3, []int64{4, 5}},
		{"from newest", 5, nil},
		{"beyond newest", 99, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ch.messagesSince(tt.sinceID, 0)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d messages, got %d", len(tt.want), len(got))
			}
			for i, msg := range got {
				if msg.ID != tt.want[i] {
					t.Fatalf("position %d: expected id %d, got %d", i, tt.want[i], msg.ID)
				}
			}
		})
	}
}

func TestChannel_MessagesSince_LimitKeepsOldest(t *testing.T) {
	var ids allocator
	ch := newChannel("proj-x")
	for i := 0; i < 10; i++ {
		ch.append(&ids, "claude", "x")
	}

	got := ch.messagesSince(2, 3)
	if len(got) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got))
	}
	// The oldest qualifying messages come back, so the caller's next poll
	// with since=last seen continues from id 5 without skipping 6..10.
	for i, want := range []int64{3, 4, 5} {
		if got[i].ID != want {
			t.Fatalf("position %d: expected id %d, got %d", i, want, got[i].ID)
		}
	}
}

func TestChannel_MessagesSince_ReturnsCopy(t *testing.T) {
	var ids allocator
	ch := newChannel("proj-x")
	ch.append(&ids, "claude", "original")

	got := ch.messagesSince(0, 0)
	got[0].Text = "mutated"

	again := ch.messagesSince(0, 0)
	if again[0].Text != "original" {
		t.Fatalf("caller mutation leaked into the store: %s", again[0].Text)
	}
}

func TestChannel_MessagesSince_Empty(t *testing.T) {
	ch := newChannel("proj-x")

	got := ch.messagesSince(0, 0)
	if got == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(got) != 0 {
		t.Fatalf("expected no messages, got %d", len(got))
	}
}

func TestChannel_Stats(t *testing.T) {
	var ids allocator
	ch := newChannel("proj-x")

	count, lastID := ch.stats()
	if count != 0 || lastID != 0 {
		t.Fatalf("expected empty stats, got count=%d lastID=%d", count, lastID)
	}

	ch.append(&ids, "claude", "a")
	ch.append(&ids, "codex", "b")

	count, lastID = ch.stats()
	if count != 2 {
		t.Fatalf("expected count 2, got %d", count)
	}
	if lastID != 2 {
		t.Fatalf("expected last id 2, got %d", lastID)
	}
}
