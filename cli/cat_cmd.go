package cli

import (
	"context"
	"io"

	"github.com/rosedblabs/fdstream"
	"github.com/rosedblabs/fdstream/internal"
	"github.com/rosedblabs/fdstream/metrics"
	"github.com/spf13/cobra"
)

func CatCommand() *cobra.Command {
	var opts StreamOpts

	cmd := &cobra.Command{
		Use:   "cat FILE",
		Short: "Print a file (or a byte range of it), optionally decoded",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := GetAppConfig(cmd)
			if err != nil {
				return err
			}
			return runCat(cmd.Context(), args[0], opts, cfg, cmd.OutOrStdout())
		},
	}
	addStreamFlags(cmd, &opts)
	return cmd
}

func runCat(ctx context.Context, path string, opts StreamOpts, cfg *internal.CLIConfig, out io.Writer) error {
	ro, err := opts.readOptions(cfg)
	if err != nil {
		return err
	}
	collector := metrics.NewStreamCollector("")
	ro.Metrics = collector

	rs := fdstream.NewReadStream(path, ro)
	done := make(chan struct{})
	var writeErr error
	rs.OnClose(func() { close(done) })
	rs.Subscribe(func(c fdstream.Chunk) {
		if writeErr != nil {
			return
		}
		if ro.Encoding != fdstream.EncodingNone {
			_, writeErr = io.WriteString(out, c.Text)
		} else {
			_, writeErr = out.Write(c.Data)
		}
		if writeErr != nil {
			rs.Destroy()
		}
	})

	select {
	case <-done:
	case <-ctx.Done():
		rs.Destroy()
		<-done
		return ctx.Err()
	}
	if writeErr != nil {
		return writeErr
	}
	if err := rs.Err(); err != nil {
		return err
	}
	if opts.ShowMetrics {
		printSnapshot(collector.Snapshot())
	}
	return nil
}
