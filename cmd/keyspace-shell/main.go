// Command keyspace-shell is an interactive operator shell over an
// embedded keyspace, grounded on warren's cobra-based command tree
// (cmd/warren) and memcp's chzyer/readline REPL (scm/prompt.go). It is a
// local tool that opens one directory at a time; it does not listen on
// any network interface.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/rs/zerolog"

	"github.com/dreamware/keyspace/internal/xlog"
)

const (
	shellPrompt    = "\033[32mks>\033[0m "
	resultPrefix   = "\033[31m= \033[0m"
	historyScratch = ".keyspace-shell-history.tmp"
)

func main() {
	xlog.Init(xlog.Config{Level: zerolog.WarnLevel})

	sh := newShell()
	defer sh.close()

	if len(os.Args) > 1 {
		// One-shot mode: "keyspace-shell open ./data" then exit, useful
		// from scripts that don't want an interactive session.
		root := newRootCmd(sh)
		root.SetArgs(os.Args[1:])
		if err := root.Execute(); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}

	runRepl(sh)
}

func runRepl(sh *shell) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            shellPrompt,
		HistoryFile:       historyScratch,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "error: readline:", err)
		os.Exit(1)
	}
	defer rl.Close()
	rl.CaptureExitSignal()

	root := newRootCmd(sh)

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err != nil {
			break
		}

		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" || args[0] == "quit" {
			break
		}

		root.SetArgs(args)
		if err := root.Execute(); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
	}
}

