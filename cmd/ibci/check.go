package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Lex, parse, and type-check a module without executing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, unit, err := compileEntry(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s: OK\n", unit.Path)
		return nil
	},
}
