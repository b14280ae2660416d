package logger

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func newTestLogger(verbose, debug bool) (Logger, *bytes.Buffer, *bytes.Buffer) {
	color.NoColor = true
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return Logger{Verbose: verbose, Debug: debug, Out: out, Err: errOut}, out, errOut
}

func TestInfofRespectsVerbosity(t *testing.T) {
	l, out, _ := newTestLogger(false, false)
	l.Infof("hidden %d", 1)
	if out.Len() != 0 {
		t.Errorf("Infof without --verbose wrote %q", out.String())
	}

	l, out, _ = newTestLogger(true, false)
	l.Infof("shown %d", 2)
	if got := out.String(); got != "[info] shown 2\n" {
		t.Errorf("Infof() = %q, want %q", got, "[info] shown 2\n")
	}
}

func TestDebugfOnlyWithDebug(t *testing.T) {
	l, out, _ := newTestLogger(true, false)
	l.Debugf("secret id %s", "x")
	if out.Len() != 0 {
		t.Errorf("Debugf with only --verbose wrote %q", out.String())
	}

	l, out, _ = newTestLogger(false, true)
	l.Debugf("secret id %s", "x")
	if !strings.Contains(out.String(), "[debug] secret id x") {
		t.Errorf("Debugf() = %q, want debug line", out.String())
	}
}

func TestWarnfAlwaysIgnoresVerbosity(t *testing.T) {
	l, _, errOut := newTestLogger(false, false)
	l.Warnf("quiet")
	l.WarnfAlways("loud")
	if got := errOut.String(); got != "[warn] loud\n" {
		t.Errorf("stderr = %q, want only the WarnfAlways line", got)
	}
}

func TestErrorfAndReturn(t *testing.T) {
	l, _, errOut := newTestLogger(false, true)
	sentinel := errors.New("boom")
	err := l.ErrorfAndReturn("putting secret: %w", sentinel)
	if !errors.Is(err, sentinel) {
		t.Errorf("ErrorfAndReturn() lost the wrapped error: %v", err)
	}
	if !strings.Contains(errOut.String(), "[error] putting secret") {
		t.Errorf("stderr = %q, want error line", errOut.String())
	}
}
