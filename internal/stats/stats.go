// Package stats is a ticking CSV writer over a session's flow and
// stream-table counters, so a long-running relaysh connection can be
// watched from a log file.
package stats

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Snapshot is whatever the caller's session exposes; stats only needs the
// numbers, not the session type itself, so it has no import on
// internal/session.
type Snapshot struct {
	BytesInFlight int64
	BytesToAck    int64
	SendWindow    int64
	StreamsOpen   int
}

var header = []string{"Unix", "BytesInFlight", "BytesToAck", "SendWindow", "StreamsOpen"}

// Run ticks every interval seconds, appending one CSV row built from
// snap() to path, formatting path with time.Now for log rotation. It
// never returns on its own; callers start it as its own goroutine for the
// process lifetime and stop it by letting the process exit.
func Run(path string, interval int, snap func() Snapshot) {
	if path == "" || interval <= 0 {
		return
	}
	ticker := time.NewTicker(time.Duration(interval) * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		writeRow(path, snap())
	}
}

func writeRow(path string, s Snapshot) {
	logdir, logfile := filepath.Split(path)
	f, err := os.OpenFile(logdir+time.Now().Format(logfile), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
	if err != nil {
		log.Println(err)
		return
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if stat, err := f.Stat(); err == nil && stat.Size() == 0 {
		if err := w.Write(header); err != nil {
			log.Println(err)
		}
	}
	row := []string{
		fmt.Sprint(time.Now().Unix()),
		fmt.Sprint(s.BytesInFlight),
		fmt.Sprint(s.BytesToAck),
		fmt.Sprint(s.SendWindow),
		fmt.Sprint(s.StreamsOpen),
	}
	if err := w.Write(row); err != nil {
		log.Println(err)
	}
	w.Flush()
}
