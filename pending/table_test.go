package pending

import (
	"net"
	"os"
	"testing"
	"time"

	"github.com/treemana/gorelay/log"
)

func TestMain(m *testing.M) {
	if err := log.Init(log.Config{STDOUT: true}); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

var client = &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000}

func TestInsertUnique(t *testing.T) {
	table := New(0)

	const n = 1000
	seen := make(map[uint16]struct{}, n)
	for i := 0; i < n; i++ {
		sid, err := table.Insert(uint16(i), client)
		if err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
		if sid == uint16(i) {
			t.Fatalf("Insert() returned the original id %#x", sid)
		}
		if _, ok := seen[sid]; ok {
			t.Fatalf("Insert() returned %#x twice", sid)
		}
		seen[sid] = struct{}{}
	}
	if got := table.Len(); got != n {
		t.Errorf("Len() = %d, want %d", got, n)
	}
}

func TestRemoveOnce(t *testing.T) {
	table := New(0)

	sid, err := table.Insert(0x1234, client)
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	e, ok := table.Remove(sid)
	if !ok {
		t.Fatal("Remove() = false, want true")
	}
	if e.ID != 0x1234 {
		t.Errorf("ID = %#x, want 0x1234", e.ID)
	}
	if e.Addr != client {
		t.Errorf("Addr = %v, want %v", e.Addr, client)
	}

	if _, ok = table.Remove(sid); ok {
		t.Error("second Remove() = true, want false")
	}
}

func TestRemoveUnknown(t *testing.T) {
	table := New(0)
	if _, ok := table.Remove(0xBEEF); ok {
		t.Error("Remove() = true for id never inserted")
	}
}

func TestExpiry(t *testing.T) {
	table := New(10 * time.Millisecond)

	sid, err := table.Insert(1, client)
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	if _, ok := table.Remove(sid); ok {
		t.Error("Remove() = true after expiry")
	}
}

func TestSweep(t *testing.T) {
	table := New(10 * time.Millisecond)
	table.Start()
	defer table.Stop()

	if _, err := table.Insert(1, client); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if table.Len() == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("expired entry never swept")
}

func TestFull(t *testing.T) {
	if testing.Short() {
		t.Skip("fills the whole id space")
	}

	table := New(time.Hour)
	for table.Len() < idSpace {
		id := uint16(table.Len())
		if _, err := table.Insert(id, client); err != nil {
			// only possible when the single free slot equals id
			if _, err = table.Insert(id+1, client); err != nil {
				t.Fatalf("Insert() error = %v", err)
			}
		}
	}

	if _, err := table.Insert(0, client); err != ErrFull {
		t.Errorf("Insert() error = %v, want %v", err, ErrFull)
	}
}
