package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wazergo/runtime/api"
	"github.com/wazergo/runtime/internal/artifact"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <artifact>",
		Short: "load a compiled artifact and print its declared imports/exports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			art, err := artifact.Load(data)
			if err != nil {
				return err
			}
			fmt.Printf("format: %s\n", art.Format)
			fmt.Printf("compile features: 0x%x\n", art.Header.CompileFeatures)
			fmt.Printf("types: %d, tables: %d, memories: %d, local functions: %d\n",
				len(art.Module.Types), len(art.Module.Tables), len(art.Module.Memories), len(art.Sidecar.FuncBodies))
			fmt.Println("imports:")
			for _, imp := range art.Module.Imports {
				fmt.Printf("  %s.%s (%s)\n", imp.Module, imp.Name, api.ExternTypeName(imp.Type))
			}
			fmt.Println("exports:")
			for _, exp := range art.Module.Exports {
				fmt.Printf("  %s (%s) -> index %d\n", exp.Name, api.ExternTypeName(exp.Type), exp.Index)
			}
			if art.Module.StartFunc != nil {
				fmt.Printf("start function: %d\n", *art.Module.StartFunc)
			}
			return nil
		},
	}
}
