package main

import (
	"github.com/spf13/cobra"

	"github.com/scttfrdmn/coldfetch/internal/ui"
)

func (a *app) classifyCmd() *cobra.Command {
	var loc locationFlags

	cmd := &cobra.Command{
		Use:   "classify [s3://bucket/prefix]",
		Short: "Show what a retrieval would do without doing it",
		Long: `List every object under the location with its storage class and the
action a retrieval would take: skip, download or restore. Nothing is
restored or downloaded.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			location, err := loc.location(args)
			if err != nil {
				return err
			}

			sess, cleanup, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			req, err := a.request(location, loc.days)
			if err != nil {
				return err
			}

			inspections, err := sess.orch.Inspect(cmd.Context(), req)
			if len(inspections) > 0 {
				if perr := ui.PrintInspectionTable(a.out, sess.styles, inspections, req.Tier); perr != nil {
					return perr
				}
			}
			return err
		},
	}

	loc.register(cmd)
	return cmd
}
