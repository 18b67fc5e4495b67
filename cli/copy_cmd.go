package cli

import (
	"context"
	"fmt"
	"hash"

	"github.com/pterm/pterm"
	"github.com/rosedblabs/fdstream"
	"github.com/rosedblabs/fdstream/internal"
	"github.com/rosedblabs/fdstream/internal/checksum"
	"github.com/rosedblabs/fdstream/metrics"
	"github.com/spf13/cobra"
)

func CopyCommand() *cobra.Command {
	var opts StreamOpts

	cmd := &cobra.Command{
		Use:   "copy SRC DST",
		Short: "Copy a file (or a byte range of it) through a read and a write stream",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := GetAppConfig(cmd)
			if err != nil {
				return err
			}
			return runCopy(cmd.Context(), args[0], args[1], opts, cfg)
		},
	}
	addStreamFlags(cmd, &opts)
	cmd.Flags().IntVar(&opts.HighWaterMark, "high-water-mark", 0, "Queued bytes before the reader pauses (default from config)")
	cmd.Flags().StringVar(&opts.Checksum, "checksum", "", "Verify the copy: none, murmur3, xxhash")
	cmd.Flags().BoolVar(&opts.Sync, "sync", false, "Flush the destination to disk before closing it")
	return cmd
}

func runCopy(ctx context.Context, src, dst string, opts StreamOpts, cfg *internal.CLIConfig) error {
	ro, err := opts.readOptions(cfg)
	if err != nil {
		return err
	}
	// the copy moves raw bytes, text decoding is only useful for cat
	ro.Encoding = fdstream.EncodingNone
	wo := opts.writeOptions(cfg)
	csType, err := opts.checksumType(cfg)
	if err != nil {
		return err
	}

	collector := metrics.NewStreamCollector("")
	ro.Metrics = collector
	wo.Metrics = collector

	rs := fdstream.NewReadStream(src, ro)
	ws := fdstream.NewWriteStream(dst, wo)

	var srcHash hash.Hash
	if h := checksum.New(csType); h != nil {
		srcHash = h
		rs.OnData(func(c fdstream.Chunk) { _, _ = h.Write(c.Data) })
	}

	internal.Info("copying", internal.Fields{
		internal.FieldPath: src + " -> " + dst,
	})
	if err := fdstream.Pipe(rs, ws).Wait(ctx); err != nil {
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}

	if srcHash != nil {
		dstHash := checksum.New(csType)
		verify := fdstream.DefaultReadOptions
		verify.ChunkSize = ro.ChunkSize
		if err := digestFile(ctx, dst, verify, dstHash); err != nil {
			return fmt.Errorf("verify %s: %w", dst, err)
		}
		want, got := checksum.Sum(srcHash), checksum.Sum(dstHash)
		if want != got {
			return fmt.Errorf("checksum mismatch: %s %s != %s", csType, want, got)
		}
		internal.Info("checksum verified", internal.Fields{
			internal.FieldChecksum: csType.String() + ":" + got,
		})
	}

	snap := collector.Snapshot()
	pterm.Success.Printfln("copied %d bytes from %s to %s", snap.BytesWritten, src, dst)
	if opts.ShowMetrics {
		printSnapshot(snap)
	}
	return nil
}

// digestFile feeds every byte of path into h.
func digestFile(ctx context.Context, path string, opts fdstream.ReadOptions, h hash.Hash) error {
	rs := fdstream.NewReadStream(path, opts)
	done := make(chan struct{})
	rs.OnClose(func() { close(done) })
	rs.Subscribe(func(c fdstream.Chunk) { _, _ = h.Write(c.Data) })

	select {
	case <-done:
		return rs.Err()
	case <-ctx.Done():
		rs.Destroy()
		return ctx.Err()
	}
}

func printSnapshot(snap metrics.StreamSnapshot) {
	data := pterm.TableData{
		{"metric", "value"},
		{"elapsed", snap.Elapsed.String()},
		{"bytes read", fmt.Sprint(snap.BytesRead)},
		{"chunks read", fmt.Sprint(snap.ChunksRead)},
		{"bytes written", fmt.Sprint(snap.BytesWritten)},
		{"writes", fmt.Sprint(snap.Writes)},
		{"drains", fmt.Sprint(snap.Drains)},
		{"errors", fmt.Sprint(snap.Errors)},
		{"read MB/s", fmt.Sprintf("%.2f", snap.ReadBps/1e6)},
		{"write MB/s", fmt.Sprintf("%.2f", snap.WriteBps/1e6)},
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
