package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"wmclean/internal/preflight"
)

func newProvidersCommand(ctx *commandContext) *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List configured remote providers in the order they are tried",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(cfg.Providers) == 0 {
				fmt.Fprintln(out, "No providers configured; every unit is filled locally")
				return nil
			}

			headers := []string{"#", "Name", "Kind", "Accepts", "Encoding", "Endpoint", "Key", "Rate", "Enabled"}
			if check {
				headers = append(headers, "Check")
			}
			rows := make([][]string, 0, len(cfg.Providers))
			for i, p := range cfg.Providers {
				rate := "-"
				if p.RequestsPerSecond > 0 {
					rate = strconv.FormatFloat(p.RequestsPerSecond, 'f', -1, 64) + "/s"
				}
				row := []string{
					strconv.Itoa(i + 1),
					p.Name,
					p.Kind,
					p.Accepts,
					p.Encoding,
					p.Endpoint,
					keyState(p.APIKey),
					rate,
					yesNo(!p.Disabled),
				}
				if check {
					row = append(row, preflight.CheckProvider(cmd.Context(), p).Detail)
				}
				rows = append(rows, row)
			}
			fmt.Fprint(out, renderTable(headers, rows, []columnAlignment{alignRight}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "Contact each provider endpoint")
	return cmd
}
