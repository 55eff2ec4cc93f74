package main

import (
	"github.com/spf13/cobra"
)

var (
	allIncremental bool
	allPage        string
	allType        string
)

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "Extract then run in one invocation",
	RunE: func(cmd *cobra.Command, args []string) error {
		extractIncremental = allIncremental
		extractPage = allPage
		runPage = allPage
		runKind = allType

		if err := runExtract(cmd.Context()); err != nil {
			return err
		}
		return runAssertions(cmd.Context())
	},
}

func init() {
	allCmd.Flags().BoolVar(&allIncremental, "incremental", false, "reuse prior assertions for pages whose content is unchanged")
	allCmd.Flags().StringVar(&allPage, "page", "", "restrict both extraction and execution to pages whose path contains this substring")
	allCmd.Flags().StringVar(&allType, "type", "", "only run assertions of this type (api, sql, ui)")
	rootCmd.AddCommand(allCmd)
}
