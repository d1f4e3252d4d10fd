package cmd

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"

	"github.com/go-mizu/ptext/reader"
)

var (
	readMax     int
	readColumn  string
	readWorkers int
	readShow    int
	readVerbose bool
)

var readCmd = &cobra.Command{
	Use:     "read",
	Example: "ptext read <file.parquet | directory>",
	Short:   "read the text column and report document count and throughput",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRead(cmd, args[0])
	},
}

func init() {
	readCmd.Flags().IntVar(&readMax, "max", 0, "maximum documents to read, 0 for all")
	readCmd.Flags().StringVar(&readColumn, "column", "text", "byte-array column to extract")
	readCmd.Flags().IntVar(&readWorkers, "workers", 0, "cap decode workers per file, 0 for automatic")
	readCmd.Flags().IntVar(&readShow, "show", 0, "print the first N documents")
	readCmd.Flags().BoolVarP(&readVerbose, "verbose", "v", false, "log per-file progress")
}

func runRead(cmd *cobra.Command, path string) error {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(cmd.ErrOrStderr()))
	if readVerbose {
		logger = level.NewFilter(logger, level.AllowDebug())
	} else {
		logger = level.NewFilter(logger, level.AllowWarn())
	}

	opts := []reader.Option{
		reader.WithLogger(logger),
		reader.WithColumn(readColumn),
	}
	if readWorkers > 0 {
		opts = append(opts, reader.WithMaxWorkers(readWorkers))
	}

	start := time.Now()
	res, err := reader.New(opts...).ReadTexts(path, readMax)
	if err != nil {
		return err
	}
	defer res.Release()
	elapsed := time.Since(start)

	out := cmd.OutOrStdout()
	rate := float64(res.TotalBytes) / elapsed.Seconds()
	fmt.Fprintf(out, "documents  %d\n", res.Len())
	fmt.Fprintf(out, "bytes      %s\n", humanize.Bytes(res.TotalBytes))
	fmt.Fprintf(out, "elapsed    %s\n", elapsed.Round(time.Millisecond))
	fmt.Fprintf(out, "throughput %s/s\n", humanize.Bytes(uint64(rate)))

	for i := 0; i < readShow && i < res.Len(); i++ {
		doc := res.Documents[i]
		if len(doc) > 120 {
			doc = doc[:120] + "..."
		}
		fmt.Fprintf(out, "[%d] %s\n", i, doc)
	}
	return nil
}
