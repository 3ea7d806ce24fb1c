package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-relay/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-relay/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-relay/migrations"
)

// newTestRepo opens a migrated SQLite database in a temp dir.
func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "archive.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func seed(t *testing.T, repo *SQLiteRepository, base time.Time, topics ...string) {
	t.Helper()
	for i, topic := range topics {
		msg := &Message{
			Topic:      topic,
			Payload:    []byte(topic),
			ReceivedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := repo.Create(context.Background(), msg); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
}

func TestCreate_FillsDefaults(t *testing.T) {
	repo := newTestRepo(t)

	msg := &Message{Topic: "a/b", Payload: []byte(`{"v":1}`)}
	if err := repo.Create(context.Background(), msg); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if msg.ID == "" || msg.ReceivedAt.IsZero() {
		t.Errorf("Create() left ID=%q ReceivedAt=%v", msg.ID, msg.ReceivedAt)
	}
	if msg.Size != 7 {
		t.Errorf("Size = %d, want 7", msg.Size)
	}

	res, err := repo.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Total != 1 || string(res.Messages[0].Payload) != `{"v":1}` {
		t.Errorf("List() = %+v, want the stored message", res)
	}
	if !res.Messages[0].ReceivedAt.Equal(msg.ReceivedAt) {
		t.Errorf("ReceivedAt = %v, want %v", res.Messages[0].ReceivedAt, msg.ReceivedAt)
	}
}

func TestList_Filters(t *testing.T) {
	repo := newTestRepo(t)
	base := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	seed(t, repo, base, "sensors/a", "sensors/b", "alarms/a", "sensors/a")

	tests := []struct {
		name      string
		filter    Filter
		wantTotal int
		wantFirst string
	}{
		{"all newest first", Filter{}, 4, "sensors/a"},
		{"exact topic", Filter{Topic: "alarms/a"}, 1, "alarms/a"},
		{"prefix", Filter{TopicPrefix: "sensors/"}, 3, "sensors/a"},
		{"since", Filter{Since: base.Add(2 * time.Second)}, 2, "sensors/a"},
		{"prefix and since", Filter{TopicPrefix: "sensors/", Since: base.Add(time.Second)}, 2, "sensors/a"},
		{"no match", Filter{Topic: "nothing"}, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := repo.List(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if res.Total != tt.wantTotal || len(res.Messages) != tt.wantTotal {
				t.Fatalf("List() total = %d, len = %d, want %d", res.Total, len(res.Messages), tt.wantTotal)
			}
			if tt.wantFirst != "" && res.Messages[0].Topic != tt.wantFirst {
				t.Errorf("first topic = %q, want %q", res.Messages[0].Topic, tt.wantFirst)
			}
		})
	}
}

func TestList_Pagination(t *testing.T) {
	repo := newTestRepo(t)
	base := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	seed(t, repo, base, "t/1", "t/2", "t/3", "t/4", "t/5")

	res, err := repo.List(context.Background(), Filter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Total != 5 || len(res.Messages) != 2 {
		t.Fatalf("List() total = %d, len = %d, want 5 and 2", res.Total, len(res.Messages))
	}
	if res.Messages[0].Topic != "t/3" || res.Messages[1].Topic != "t/2" {
		t.Errorf("page = %s, %s; want t/3, t/2", res.Messages[0].Topic, res.Messages[1].Topic)
	}
}

func TestList_ClampsLimit(t *testing.T) {
	repo := newTestRepo(t)

	tests := []struct {
		in, want int
	}{
		{0, defaultLimit},
		{-5, defaultLimit},
		{1000, maxLimit},
		{10, 10},
	}
	for _, tt := range tests {
		res, err := repo.List(context.Background(), Filter{Limit: tt.in, Offset: -1})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if res.Limit != tt.want || res.Offset != 0 {
			t.Errorf("List(limit=%d) limit = %d offset = %d, want %d and 0", tt.in, res.Limit, res.Offset, tt.want)
		}
		if res.Messages == nil {
			t.Error("Messages = nil, want empty slice")
		}
	}
}

func TestDeleteBefore(t *testing.T) {
	repo := newTestRepo(t)
	base := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	seed(t, repo, base, "old/1", "old/2", "new/1")

	n, err := repo.DeleteBefore(context.Background(), base.Add(2*time.Second))
	if err != nil {
		t.Fatalf("DeleteBefore() error = %v", err)
	}
	if n != 2 {
		t.Errorf("DeleteBefore() = %d, want 2", n)
	}

	res, _ := repo.List(context.Background(), Filter{})
	if res.Total != 1 || res.Messages[0].Topic != "new/1" {
		t.Errorf("remaining = %+v, want only new/1", res.Messages)
	}
}
