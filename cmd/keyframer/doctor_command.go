package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"keyframer/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check external binaries and output directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			fmt.Fprintln(out, strings.Join(renderSectionHeader("Dependencies", colorize), "\n"))
			failures := 0
			for _, status := range preflight.CheckSystemDeps(cfg) {
				kind, message := statusOK, status.Command
				if !status.Available {
					kind, message = statusError, status.Detail
					if status.Optional {
						kind = statusWarn
					} else {
						failures++
					}
				}
				fmt.Fprintln(out, renderStatusLine(status.Name, kind, message, colorize))
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, strings.Join(renderSectionHeader("Environment", colorize), "\n"))
			for _, result := range preflight.RunAll(cmd.Context(), cfg) {
				kind := statusOK
				if !result.Passed {
					kind = statusError
					failures++
				}
				fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}
			fmt.Fprintln(out, renderStatusLine("Run history", statusInfo, "enabled: "+yesNo(cfg.History.Enabled), colorize))

			if failures > 0 {
				return fmt.Errorf("doctor found %d problem(s)", failures)
			}
			return nil
		},
	}
}
