package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(ctx *context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Work with duet configuration files",
	}
	cmd.AddCommand(newConfigLintCmd(ctx))
	cmd.AddCommand(newConfigPrintCmd(ctx))
	return cmd
}

func newConfigLintCmd(ctx *context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Validate a configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Source == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "No configuration file found; built-in defaults are valid.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid.\n", cfg.Source)
			return nil
		},
	}
	return cmd
}

func newConfigPrintCmd(ctx *context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "print",
		Short: "Print the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.loadConfig(cmd)
			if err != nil {
				return err
			}
			resolved := cfg.Clone()
			for _, named := range resolved.Ordered() {
				named.Spec.Workdir = named.Spec.ResolvedWorkdir
			}

			source := cfg.Source
			if source == "" {
				source = "built-in defaults"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# source: %s\n", source)

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(resolved); err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			return enc.Close()
		},
	}
	return cmd
}
