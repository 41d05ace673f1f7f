package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	enrolled bool
	failWith error

	calls []string
	args  []string
}

func (f *fakeExec) record(name string) error {
	f.calls = append(f.calls, name)
	return f.failWith
}

func (f *fakeExec) isEnrolled(context.Context) bool { return f.enrolled }
func (f *fakeExec) Init(context.Context) error {
	f.enrolled = true
	return f.record("init")
}
func (f *fakeExec) Unlock(context.Context) error   { return f.record("unlock") }
func (f *fakeExec) List(context.Context) error     { return f.record("list") }
func (f *fakeExec) AddCard(context.Context) error  { return f.record("addcard") }
func (f *fakeExec) AddLogin(context.Context) error { return f.record("addlogin") }
func (f *fakeExec) Show(_ context.Context, id string) error {
	f.args = append(f.args, id)
	return f.record("show")
}
func (f *fakeExec) Delete(_ context.Context, id string) error {
	f.args = append(f.args, id)
	return f.record("delete")
}
func (f *fakeExec) ChangePassword(context.Context) error { return f.record("passwd") }
func (f *fakeExec) Lock(context.Context) error           { return f.record("lock") }
func (f *fakeExec) Status(context.Context) error         { return f.record("status") }

func capturePrintln(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		lines = append(lines, strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &lines
}

func reader(lines ...string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(strings.Join(lines, "\n")))
}

func TestRunREPL_DispatchesCommands(t *testing.T) {
	lines := capturePrintln(t)

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "status" }, reader(
		"help",
		"init",
		"help",
		"",
		"unlock",
		"l",
		"addcard",
		"addlogin",
		"show abc",
		"delete",
		"passwd",
		"lock",
		"status",
		"foobar",
		"exit",
		"list",
	))

	assert.Equal(t, []string{"init", "unlock", "list", "addcard", "addlogin", "show", "delete", "passwd", "lock", "status"}, exec.calls)
	assert.Equal(t, []string{"abc", ""}, exec.args)
	assert.Contains(t, *lines, "Available commands: init, status, exit")
	assert.Contains(t, *lines, "Unknown command: foobar")
	assert.Contains(t, *lines, "Bye!")
	assert.Contains(t, *lines, "gv> status > ")
}

func TestRunREPL_StopsAtEOF(t *testing.T) {
	capturePrintln(t)

	exec := &fakeExec{enrolled: true}
	runREPL(context.Background(), exec, func() string { return "" }, reader("list"))

	assert.Equal(t, []string{"list"}, exec.calls)
}

func TestRunREPL_StopsOnCancelledContext(t *testing.T) {
	capturePrintln(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	exec := &fakeExec{enrolled: true}
	runREPL(ctx, exec, func() string { return "" }, reader("list", "list"))

	assert.Empty(t, exec.calls)
}

func TestRunREPL_ReportsErrors(t *testing.T) {
	lines := capturePrintln(t)

	exec := &fakeExec{enrolled: true, failWith: &common.LockedOutError{Remaining: 42 * time.Second}}
	runREPL(context.Background(), exec, func() string { return "" }, reader("unlock", "exit"))

	assert.Contains(t, *lines, "Error: too many failed attempts, try again in 42 seconds")
}
