package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isEnrolled(ctx context.Context) bool
	Init(ctx context.Context) error
	Unlock(ctx context.Context) error
	List(ctx context.Context) error
	AddCard(ctx context.Context) error
	AddLogin(ctx context.Context) error
	Show(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	ChangePassword(ctx context.Context) error
	Lock(ctx context.Context) error
	Status(ctx context.Context) error
}

// runREPL reads commands line by line from reader and dispatches them to a.
// The loop exits on end of input, on "exit" or "quit", or when ctx is done.
//
// Commands:
//
//	Before setup:
//	  help, init, status, exit | quit
//
//	After setup:
//	  help, unlock, (l)ist, addcard, addlogin, show <id>, delete <id>,
//	  passwd, lock, status, exit | quit
//
// Handler errors are reported with describe and do not stop the loop.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("gv> %s > ", statusFn()))

		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, arg := parts[0], ""
		if len(parts) > 1 {
			arg = parts[1]
		}

		var cmdErr error
		switch cmd {
		case "help":
			if a.isEnrolled(ctx) {
				printlnFn("Available commands: unlock, (l)ist, addcard, addlogin, show <id>, delete <id>, passwd, lock, status, exit")
			} else {
				printlnFn("Available commands: init, status, exit")
			}

		case "init":
			cmdErr = a.Init(ctx)

		case "unlock":
			cmdErr = a.Unlock(ctx)

		case "l", "list":
			cmdErr = a.List(ctx)

		case "addcard":
			cmdErr = a.AddCard(ctx)

		case "addlogin":
			cmdErr = a.AddLogin(ctx)

		case "show":
			cmdErr = a.Show(ctx, arg)

		case "delete", "rm":
			cmdErr = a.Delete(ctx, arg)

		case "passwd":
			cmdErr = a.ChangePassword(ctx)

		case "lock":
			cmdErr = a.Lock(ctx)

		case "status":
			cmdErr = a.Status(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if cmdErr != nil {
			printlnFn("Error:", describe(cmdErr))
		}
	}
}
