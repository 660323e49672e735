package incoming

import (
	"strings"
	"sync/atomic"
	"testing"

	"github.com/oserres/grpc-homa/pkg/mdwire"
	"github.com/oserres/grpc-homa/pkg/rcslice"
)

func TestDeserializeMetadataCalloutSubstitution(t *testing.T) {
	head := make([]byte, 256)
	m := newTestMessage(head, nil, len(head), len(head))

	n := m.AddMetadata(0,
		MDFixtureEntry{Key: "name1", Value: "value1", CalloutIndex: mdwire.BatchPath},
		MDFixtureEntry{Key: "name2", Value: "value2", CalloutIndex: 100},
	)

	var batch mdwire.Batch
	defer batch.Destroy()
	arena := rcslice.NewArena(256)
	defer arena.Destroy()

	if err := m.DeserializeMetadata(0, n, &batch, arena, mdwire.DefaultWellKnown); err != nil {
		t.Fatalf("DeserializeMetadata: %v", err)
	}
	if batch.Len() != 2 {
		t.Fatalf("Len = %d, want 2", batch.Len())
	}

	md := batch.ToMD()
	if got := md.Get(":path"); len(got) != 1 || got[0] != "value1" {
		t.Fatalf(":path = %v", got)
	}
	if got := md.Get("name2"); len(got) != 1 || got[0] != "value2" {
		t.Fatalf("name2 = %v", got)
	}
}

func TestDeserializeMetadataEndsMidPrefix(t *testing.T) {
	head := make([]byte, 5)
	m := newTestMessage(head, nil, 5, 5)

	var batch mdwire.Batch
	defer batch.Destroy()
	arena := rcslice.NewArena(64)
	defer arena.Destroy()

	err := m.DeserializeMetadata(0, 5, &batch, arena, mdwire.DefaultWellKnown)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "only 5 bytes available") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDeserializeMetadataOverrunsRegion(t *testing.T) {
	head := make([]byte, 32)
	prefix := mdwire.EntryPrefix{KeyLength: 5, ValueLength: 50, CalloutIndex: 100}
	prefix.Put(head[0:mdwire.EntryPrefixSize])
	copy(head[mdwire.EntryPrefixSize:mdwire.EntryPrefixSize+5], []byte("abcde"))
	region := mdwire.EntryPrefixSize + 5

	m := newTestMessage(head[:region], nil, region, region)

	var batch mdwire.Batch
	defer batch.Destroy()
	arena := rcslice.NewArena(64)
	defer arena.Destroy()

	err := m.DeserializeMetadata(0, region, &batch, arena, mdwire.DefaultWellKnown)
	if err == nil {
		t.Fatal("expected error")
	}
	want := "key (5 bytes) and value (50 bytes) exceed remaining space (5 bytes)"
	if !strings.Contains(err.Error(), want) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDeserializeMetadataBorrowedValueKeepsMessageAlive(t *testing.T) {
	head := make([]byte, 256)
	m := newTestMessage(head, nil, len(head), len(head))
	m.SetMaxStaticMDLength(10)
	var destroyCount atomic.Int32
	m.DestroyCounter = &destroyCount

	value := strings.Repeat("v", 20)
	n := m.AddMetadata(0, MDFixtureEntry{Key: "key1", Value: value, CalloutIndex: 999})

	var batch mdwire.Batch
	arena := rcslice.NewArena(64)
	defer arena.Destroy()

	if err := m.DeserializeMetadata(0, n, &batch, arena, mdwire.DefaultWellKnown); err != nil {
		t.Fatalf("DeserializeMetadata: %v", err)
	}

	m.Release()
	if destroyCount.Load() != 0 {
		t.Fatalf("message destroyed before batch released the borrowed value")
	}

	batch.Destroy()
	if destroyCount.Load() != 1 {
		t.Fatalf("message not destroyed after batch released the borrowed value")
	}
}
