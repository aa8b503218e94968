package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/scttfrdmn/coldfetch/pkg/errors"
	"github.com/scttfrdmn/coldfetch/pkg/types"
)

// locationFlags selects a location either as a URL argument or as
// --bucket/--prefix.
type locationFlags struct {
	bucket string
	prefix string
	days   int
}

func (f *locationFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.bucket, "bucket", "b", "", "bucket name (instead of a URL argument)")
	cmd.Flags().StringVar(&f.prefix, "prefix", "", "key prefix within --bucket")
	cmd.Flags().IntVar(&f.days, "days", 0, "retention window in days; older objects are skipped")
	_ = cmd.MarkFlagRequired("days")
}

// location returns the s3:// identifier for the arguments
func (f *locationFlags) location(args []string) (string, error) {
	switch {
	case len(args) == 1 && f.bucket != "":
		return "", errors.NewError(errors.ErrCodeInvalidRequest,
			"give either a location argument or --bucket, not both")
	case len(args) == 1:
		return args[0], nil
	case f.bucket != "":
		return "s3://" + f.bucket + "/" + strings.TrimPrefix(f.prefix, "/"), nil
	case f.prefix != "":
		return "", errors.NewError(errors.ErrCodeInvalidRequest, "--prefix requires --bucket")
	}
	return "", errors.NewError(errors.ErrCodeInvalidLocation,
		"no location given; pass s3://bucket/prefix or --bucket")
}

func (a *app) singleCmd() *cobra.Command {
	var loc locationFlags

	cmd := &cobra.Command{
		Use:   "single [s3://bucket/prefix]",
		Short: "Retrieve the recent objects under one location",
		Args:  cobra.MaximumNArgs(1),
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

			result := sess.orch.Run(cmd.Context(), req)
			return incomplete([]types.JobResult{result})
		},
	}

	loc.register(cmd)
	return cmd
}
