package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	hasDraft() bool
	New(ctx context.Context, args []string) error
	Open(ctx context.Context, args []string) error
	List(ctx context.Context) error
	Set(ctx context.Context, args []string) error
	Step(ctx context.Context, args []string) error
	Submit(ctx context.Context) error
	Show(ctx context.Context) error
	Sync(ctx context.Context) error
	Resolve(ctx context.Context, args []string) error
	Dismiss(ctx context.Context) error
	Retry(ctx context.Context) error
	Status(ctx context.Context) error
	Discard(ctx context.Context) error
	Close(ctx context.Context) error
}

// runREPL reads commands from scanner and dispatches them to a until EOF or
// "exit"/"quit". The prompt shows statusFn().
//
//	No draft open:
//	  new [assessment|serviceContract], open <id>, (l)ist, help, exit
//
//	Draft open, additionally:
//	  set path=value..., step <n>|next|back, next, back, submit, show,
//	  sync, resolve mine|theirs, dismiss, retry, status, discard, close
//
// Errors returned by command handlers are ignored here; handlers report
// their own errors.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("dk %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.hasDraft() {
				printlnFn("Available commands: set, step, next, back, submit, show, sync, resolve, dismiss, retry, status, discard, close, new, open, (l)ist, exit")
			} else {
				printlnFn("Available commands: new, open, (l)ist, exit")
			}

		case "new":
			_ = a.New(ctx, args)

		case "open":
			_ = a.Open(ctx, args)

		case "l", "list":
			_ = a.List(ctx)

		case "set":
			_ = a.Set(ctx, args)

		case "step":
			_ = a.Step(ctx, args)

		case "next", "back":
			_ = a.Step(ctx, []string{cmd})

		case "submit":
			_ = a.Submit(ctx)

		case "show":
			_ = a.Show(ctx)

		case "sync":
			_ = a.Sync(ctx)

		case "resolve":
			_ = a.Resolve(ctx, args)

		case "dismiss":
			_ = a.Dismiss(ctx)

		case "retry":
			_ = a.Retry(ctx)

		case "status":
			_ = a.Status(ctx)

		case "discard":
			_ = a.Discard(ctx)

		case "close":
			_ = a.Close(ctx)

		case "exit", "quit":
			_ = a.Close(ctx)
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
