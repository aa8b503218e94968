// Command coldfetch restores archived S3 objects and downloads readable ones
// for one location or a batch manifest.
package main

import (
	"context"
	stderr "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/scttfrdmn/coldfetch/pkg/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newApp(os.Stdin, os.Stdout, os.Stderr).command().ExecuteContext(ctx)
	stop()

	if err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// printError writes err and, for coded errors, a recommendation.
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)

	var re *errors.RetrievalError
	if !stderr.As(err, &re) {
		return
	}
	if rec := re.GetRecommendation(); rec != genericRecommendation {
		fmt.Fprintf(w, "Hint: %s\n", rec)
	}
}

var genericRecommendation = (&errors.RetrievalError{}).GetRecommendation()
