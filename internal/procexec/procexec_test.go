package procexec

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nathanodle/relaysh/internal/wire"
)

func drain(t *testing.T, p *Process) (string, Chunk) {
	t.Helper()
	var out strings.Builder
	for chunk := range p.Output() {
		if chunk.Done {
			return out.String(), chunk
		}
		out.Write(chunk.Data)
	}
	t.Fatal("output channel closed without a terminal chunk")
	return "", Chunk{}
}

func TestExecNormalExit(t *testing.T) {
	p, err := Start(context.Background(), "echo hello")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	out, term := drain(t, p)
	if !strings.Contains(out, "hello") {
		t.Fatalf("output = %q, want it to contain %q", out, "hello")
	}
	if term.ExitKind != wire.ExitNormal || term.Value != 0 {
		t.Fatalf("terminal chunk = %+v, want ExitNormal/0", term)
	}
}

func TestExecNonZeroExit(t *testing.T) {
	p, err := Start(context.Background(), "exit 7")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	_, term := drain(t, p)
	if term.ExitKind != wire.ExitNormal || term.Value != 7 {
		t.Fatalf("terminal chunk = %+v, want ExitNormal/7", term)
	}
}

func TestExecMergesStdoutAndStderr(t *testing.T) {
	p, err := Start(context.Background(), "echo out; echo err 1>&2")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	out, term := drain(t, p)
	if !strings.Contains(out, "out") || !strings.Contains(out, "err") {
		t.Fatalf("output = %q, want both stdout and stderr text", out)
	}
	if term.ExitKind != wire.ExitNormal {
		t.Fatalf("terminal chunk = %+v, want ExitNormal", term)
	}
}

func TestExecCancelStillEmitsTerminalChunk(t *testing.T) {
	p, err := Start(context.Background(), "sleep 5")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	p.Cancel()

	_, term := drain(t, p)
	if !term.Done {
		t.Fatalf("expected a terminal chunk after Cancel")
	}
	if p.State() != "reaped" {
		t.Fatalf("State() = %q, want reaped", p.State())
	}
}
