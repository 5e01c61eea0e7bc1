package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wazergo/runtime/internal/wasihost"
)

func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe <module.function> <arg>...",
		Short: "call one wasi_snapshot_preview1/wazergo_sock host function directly",
		Long: "Exercises the mount table, network ruleset, journal, and syscall dispatcher " +
			"without needing a compiled artifact: arguments are raw u32/u64 cells (guest pointers " +
			"and lengths against this process's own scratch linear memory), the same cells a real " +
			"guest call would pass. Useful for smoke-testing a --mount/--net/--journal " +
			"configuration, e.g.:\n" +
			"  wazergo probe --mount /tmp/sandbox wasi_snapshot_preview1.path_open 3 0 0 0 9 0 0 0 40",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			module, name, ok := strings.Cut(args[0], ".")
			if !ok {
				return fmt.Errorf("expected <module>.<function>, got %q", args[0])
			}
			cells := make([]uint64, len(args)-1)
			for i, a := range args[1:] {
				v, err := strconv.ParseUint(a, 10, 64)
				if err != nil {
					return fmt.Errorf("argument %d (%q): %w", i, a, err)
				}
				cells[i] = v
			}

			env, err := buildEnvironment()
			if err != nil {
				return err
			}
			defer env.Close()

			provider := wasihost.New(env.newDispatcher(), env.guest)
			fn, ok := provider.ResolveFunc(module, name)
			if !ok {
				return fmt.Errorf("no such host function: %s.%s", module, name)
			}
			if len(cells) != len(fn.Type.Params) {
				return fmt.Errorf("%s.%s expects %d arguments, got %d", module, name, len(fn.Type.Params), len(cells))
			}

			results, trap := fn.Call(context.Background(), cells)
			if trap != nil {
				return fmt.Errorf("trapped: %w", trap)
			}
			fmt.Println(results)
			return nil
		},
	}
}
