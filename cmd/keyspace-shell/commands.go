package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dreamware/keyspace"
	"github.com/dreamware/keyspace/internal/journal"
	"github.com/dreamware/keyspace/internal/partition"
	"github.com/dreamware/keyspace/internal/tree"
)

// shell carries the one piece of state that persists across commands in
// an interactive session: the currently open keyspace and the partition
// most recently selected with "use".
type shell struct {
	ks      *keyspace.Keyspace
	current string
}

func newShell() *shell {
	return &shell{}
}

func (sh *shell) close() {
	if sh.ks != nil {
		if err := sh.ks.Close(); err != nil {
			fmt.Fprintln(os.Stderr, "error closing keyspace:", err)
		}
	}
}

func (sh *shell) requireOpen() error {
	if sh.ks == nil {
		return errors.New("no keyspace open, run: open <dir>")
	}
	return nil
}

func (sh *shell) requirePartition() (string, error) {
	if err := sh.requireOpen(); err != nil {
		return "", err
	}
	if sh.current == "" {
		return "", errors.New("no partition selected, run: use <partition>")
	}
	return sh.current, nil
}

// newRootCmd builds the command tree dispatched on every shell input
// line. It is rebuilt-free: the same *cobra.Command is reused across
// readline iterations via SetArgs, the way a one-shot CLI invocation
// would be, just looped.
func newRootCmd(sh *shell) *cobra.Command {
	root := &cobra.Command{
		Use:           "keyspace-shell",
		Short:         "Interactive shell over an embedded keyspace",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		openCmd(sh),
		useCmd(sh),
		putCmd(sh),
		getCmd(sh),
		delCmd(sh),
		scanCmd(sh),
		flushCmd(sh),
		compactCmd(sh),
	)
	return root
}

func openCmd(sh *shell) *cobra.Command {
	return &cobra.Command{
		Use:   "open <dir>",
		Short: "Open or create a keyspace rooted at dir",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if sh.ks != nil {
				if err := sh.ks.Close(); err != nil {
					return fmt.Errorf("close previous keyspace: %w", err)
				}
			}

			dir := args[0]
			ks, err := openOrCreate(dir)
			if err != nil {
				return err
			}
			sh.ks = ks
			sh.current = ""
			fmt.Printf("%sopened %s (partitions: %v)\n", resultPrefix, dir, ks.ListPartitions())
			return nil
		},
	}
}

// openOrCreate distinguishes a fresh directory from an existing one by
// the presence of a journal subdirectory, since Open fails on a journal
// that was never created and Create fails on one that already exists.
func openOrCreate(dir string) (*keyspace.Keyspace, error) {
	if _, err := os.Stat(filepath.Join(dir, "journal")); errors.Is(err, os.ErrNotExist) {
		return keyspace.Create(dir)
	}
	return keyspace.Open(dir)
}

func useCmd(sh *shell) *cobra.Command {
	return &cobra.Command{
		Use:   "use <partition>",
		Short: "Select the partition subsequent commands operate on, creating it if new",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := sh.requireOpen(); err != nil {
				return err
			}
			name := args[0]
			if _, ok := sh.ks.Partition(name); !ok {
				if _, err := sh.ks.OpenPartition(name, partition.DefaultConfig()); err != nil {
					return err
				}
			}
			sh.current = name
			fmt.Printf("%susing %s\n", resultPrefix, name)
			return nil
		},
	}
}

func putCmd(sh *shell) *cobra.Command {
	return &cobra.Command{
		Use:   "put <key> <value>",
		Short: "Insert or overwrite a key in the current partition",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := sh.requirePartition()
			if err != nil {
				return err
			}
			wtx, err := sh.ks.Begin()
			if err != nil {
				return err
			}
			if err := wtx.Insert(name, []byte(args[0]), []byte(args[1])); err != nil {
				wtx.Rollback()
				return err
			}
			if err := wtx.Commit(); err != nil {
				return err
			}
			fmt.Printf("%sok\n", resultPrefix)
			return nil
		},
	}
}

func getCmd(sh *shell) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Read the current snapshot's value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := sh.requirePartition()
			if err != nil {
				return err
			}
			rtx := sh.ks.View()
			defer rtx.Close()

			v, err := rtx.Get(name, []byte(args[0]))
			if errors.Is(err, keyspace.ErrNotFound) {
				fmt.Printf("%s(not found)\n", resultPrefix)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Printf("%s%s\n", resultPrefix, v)
			return nil
		},
	}
}

func delCmd(sh *shell) *cobra.Command {
	return &cobra.Command{
		Use:   "del <key>",
		Short: "Remove a key from the current partition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := sh.requirePartition()
			if err != nil {
				return err
			}
			wtx, err := sh.ks.Begin()
			if err != nil {
				return err
			}
			if err := wtx.Remove(name, []byte(args[0])); err != nil {
				wtx.Rollback()
				return err
			}
			if err := wtx.Commit(); err != nil {
				return err
			}
			fmt.Printf("%sok\n", resultPrefix)
			return nil
		},
	}
}

func scanCmd(sh *shell) *cobra.Command {
	return &cobra.Command{
		Use:   "scan [prefix]",
		Short: "List every visible key/value pair, optionally restricted to a prefix",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := sh.requirePartition()
			if err != nil {
				return err
			}
			rtx := sh.ks.View()
			defer rtx.Close()

			kvs, err := scanKVs(rtx, name, args)
			if err != nil {
				return err
			}
			for _, kv := range kvs {
				fmt.Printf("%s%s = %s\n", resultPrefix, kv.Key, kv.Value)
			}
			fmt.Printf("%s(%d keys)\n", resultPrefix, len(kvs))
			return nil
		},
	}
}

func scanKVs(rtx *keyspace.ReadTx, partitionName string, args []string) ([]tree.KV, error) {
	if len(args) == 1 {
		return rtx.Prefix(partitionName, []byte(args[0]))
	}
	return rtx.Iter(partitionName)
}

func flushCmd(sh *shell) *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Force every journal shard to sync to stable storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := sh.requireOpen(); err != nil {
				return err
			}
			if err := sh.ks.Flush(journal.SyncData); err != nil {
				return err
			}
			fmt.Printf("%sflushed\n", resultPrefix)
			return nil
		},
	}
}

func compactCmd(sh *shell) *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "Run one synchronous compaction pass over the current partition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := sh.requirePartition()
			if err != nil {
				return err
			}
			if err := sh.ks.CompactPartition(name); err != nil {
				return err
			}
			fmt.Printf("%scompacted %s\n", resultPrefix, name)
			return nil
		},
	}
}
