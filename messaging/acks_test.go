package messaging

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"clinicore/config"
	"clinicore/notify"
	"clinicore/store"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	cfg := config.Defaults().Database
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(&cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRejectedAckRecordsException(t *testing.T) {
	db := testDB(t)
	hub := notify.NewHub()
	hub.Start()
	defer hub.Stop()
	events := hub.AddClient()
	defer hub.RemoveClient(events)

	c := NewSyncAckConsumer(db, hub)
	c.handle("acks", []byte(`{"record_id":7,"status":"rejected","detail":"schema mismatch"}`))

	excs, err := db.ListUnmailedExceptions(10)
	if err != nil {
		t.Fatalf("list exceptions: %v", err)
	}
	if len(excs) != 1 {
		t.Fatalf("exceptions = %d, want 1", len(excs))
	}
	if !strings.Contains(excs[0].Message, "record 7") || !strings.Contains(excs[0].Message, "schema mismatch") {
		t.Errorf("message = %q", excs[0].Message)
	}

	select {
	case evt := <-events:
		if evt.Name != "sync-error" {
			t.Errorf("event = %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("no sync-error event")
	}
}

func TestOkAndMalformedAcksAreIgnored(t *testing.T) {
	db := testDB(t)
	c := NewSyncAckConsumer(db, nil)

	c.handle("acks", []byte(`{"record_id":7,"status":"ok"}`))
	c.handle("acks", []byte(`{"status":"rejected","detail":"no record id"}`))
	c.handle("acks", []byte(`not json`))

	excs, err := db.ListUnmailedExceptions(10)
	if err != nil {
		t.Fatalf("list exceptions: %v", err)
	}
	if len(excs) != 0 {
		t.Fatalf("exceptions = %d, want 0", len(excs))
	}
}

func TestDrainerStopIsIdempotent(t *testing.T) {
	d := NewOutboxDrainer(testDB(t), NewClient(&config.Defaults().Messaging), time.Millisecond)
	d.Start()
	d.Stop()
	d.Stop()
}
