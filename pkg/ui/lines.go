package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/go-go-golems/palaver/pkg/controller"
	"github.com/pkg/errors"
)

// RunLines reads one draft per line from in and submits each, waiting for its reply before
// reading the next. Transcript output is left to a printer subscribed to the store; only
// failures are written to out.
func RunLines(ctx context.Context, in io.Reader, out io.Writer, ctrl *controller.Controller) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		res, err := ctrl.Submit(ctx, scanner.Text())
		if errors.Is(err, controller.ErrEmptyDraft) {
			continue
		}
		if err != nil {
			_, _ = fmt.Fprintf(out, "error: %s\n", err)
			continue
		}
		if res.Outcome != controller.OutcomeReplied {
			_, _ = fmt.Fprintf(out, "error: %s (%s)\n", res.Err, res.Outcome)
		}
	}

	return scanner.Err()
}
