package cli

import (
	"os"

	"github.com/rosedblabs/fdstream"
	"github.com/rosedblabs/fdstream/internal"
	"github.com/rosedblabs/fdstream/internal/checksum"
	"github.com/spf13/cobra"
)

// StreamOpts are the flags shared by the stream commands. Zero values fall
// back to the loaded config.
type StreamOpts struct {
	Start         int64
	End           int64
	ChunkSize     int
	HighWaterMark int
	Encoding      string
	Checksum      string
	ShowMetrics   bool
	Sync          bool
}

func addStreamFlags(cmd *cobra.Command, opts *StreamOpts) {
	cmd.Flags().Int64Var(&opts.Start, "start", 0, "Offset of the first byte to read")
	cmd.Flags().Int64Var(&opts.End, "end", -1, "Inclusive offset of the last byte to read (-1 reads to end of file)")
	cmd.Flags().IntVar(&opts.ChunkSize, "chunk-size", 0, "Bytes per read (default from config)")
	cmd.Flags().StringVar(&opts.Encoding, "encoding", "", "Text encoding: utf8, ascii, latin1, utf16le, hex, base64")
	cmd.Flags().BoolVar(&opts.ShowMetrics, "metrics", false, "Print stream counters when done")
}

func (o StreamOpts) readOptions(cfg *internal.CLIConfig) (fdstream.ReadOptions, error) {
	ro := fdstream.DefaultReadOptions
	ro.Start = o.Start
	ro.End = o.End
	ro.ChunkSize = cfg.ChunkSize
	if o.ChunkSize > 0 {
		ro.ChunkSize = o.ChunkSize
	}
	encName := cfg.Encoding
	if o.Encoding != "" {
		encName = o.Encoding
	}
	enc, err := fdstream.ParseEncoding(encName)
	if err != nil {
		return ro, err
	}
	ro.Encoding = enc
	return ro, nil
}

func (o StreamOpts) writeOptions(cfg *internal.CLIConfig) fdstream.WriteOptions {
	wo := fdstream.DefaultWriteOptions
	wo.HighWaterMark = cfg.HighWaterMark
	if o.HighWaterMark > 0 {
		wo.HighWaterMark = o.HighWaterMark
	}
	wo.Perm = os.FileMode(cfg.FileMode)
	wo.SyncOnClose = o.Sync
	return wo
}

func (o StreamOpts) checksumType(cfg *internal.CLIConfig) (checksum.Type, error) {
	raw := cfg.Checksum
	if o.Checksum != "" {
		raw = o.Checksum
	}
	return checksum.Parse(raw)
}
