package main

import (
	"fmt"

	"github.com/spf13/cobra"

	cfgpkg "github.com/local/patchsplit/internal/config"
	"github.com/local/patchsplit/internal/divider"
	logpkg "github.com/local/patchsplit/internal/logger"
)

var dividerOut string

var dividerCmd = &cobra.Command{
	Use:   "divider <data>",
	Short: "Write a printable divider sheet PDF",
	Long: `divider writes a one-page PDF carrying a solid patch mark and a Code 128
symbol of <data>. A printed sheet is recognised in patch, barcode and either
mode. The output path is printed on stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: runDivider,
}

func init() {
	dividerCmd.Flags().StringVarP(&dividerOut, "output", "o", "divider.pdf", "output PDF path")
	rootCmd.AddCommand(dividerCmd)
}

func runDivider(cmd *cobra.Command, args []string) error {
	initLogging(cfgpkg.FromEnv(), true)
	defer logpkg.Close()

	if err := divider.WriteFile(args[0], dividerOut); err != nil {
		return err
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), dividerOut)
	return err
}
