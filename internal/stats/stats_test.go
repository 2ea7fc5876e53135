package stats

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteRowWritesHeaderOnceThenAppends(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stats.csv")

	writeRow(path, Snapshot{BytesInFlight: 10, BytesToAck: 20, SendWindow: 256, StreamsOpen: 3})
	writeRow(path, Snapshot{BytesInFlight: 11, BytesToAck: 21, SendWindow: 256, StreamsOpen: 2})

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3 (header + 2 rows)", len(records))
	}
	if records[0][0] != "Unix" {
		t.Fatalf("header = %v, want it to start with Unix", records[0])
	}
	if records[1][1] != "10" || records[1][4] != "3" {
		t.Fatalf("first row = %v, want BytesInFlight=10 StreamsOpen=3", records[1])
	}
	if records[2][1] != "11" || records[2][4] != "2" {
		t.Fatalf("second row = %v, want BytesInFlight=11 StreamsOpen=2", records[2])
	}
}

func TestRunNoopWithoutPathOrInterval(t *testing.T) {
	// Run must return immediately rather than blocking forever when
	// disabled, since main() always starts it in its own goroutine.
	Run("", 5, func() Snapshot { return Snapshot{} })
	Run("/tmp/unused.csv", 0, func() Snapshot { return Snapshot{} })
}
