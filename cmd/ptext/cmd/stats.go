package cmd

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/go-mizu/ptext/compress"
	"github.com/go-mizu/ptext/parquet"
	"github.com/go-mizu/ptext/reader"
)

var statsCmd = &cobra.Command{
	Use:     "stats",
	Example: "ptext stats <file.parquet>",
	Short:   "print per-column metadata of a parquet file",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStats(cmd, args[0])
	},
}

type columnStats struct {
	name         string
	typ          parquet.PhysicalType
	codec        parquet.CompressionCodec
	numValues    int64
	compressed   int64
	uncompressed int64
}

func runStats(cmd *cobra.Command, file string) error {
	meta, err := reader.ReadMetadata(file)
	if err != nil {
		return err
	}

	// Leaf schema elements line up with the column order inside every
	// row group.
	var names []string
	for i, elem := range meta.Schema {
		if i == 0 || elem.NumChildren > 0 {
			continue
		}
		names = append(names, elem.Name)
	}

	stats := make([]columnStats, len(names))
	for i := range stats {
		stats[i].name = names[i]
	}
	for _, rg := range meta.RowGroups {
		for i, col := range rg.Columns {
			if i >= len(stats) {
				break
			}
			stats[i].typ = col.Type
			stats[i].codec = col.Codec
			stats[i].numValues += col.NumValues
			stats[i].compressed += col.TotalCompressed
			stats[i].uncompressed += col.TotalUncompressed
		}
	}

	out := cmd.OutOrStdout()
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"column", "type", "codec", "values", "compressed", "uncompressed", "decodable"})
	for _, s := range stats {
		decodable := "no"
		if compress.Supported(s.codec) {
			decodable = "yes"
		}
		table.Append([]string{
			s.name,
			s.typ.String(),
			s.codec.String(),
			strconv.FormatInt(s.numValues, 10),
			humanize.Bytes(uint64(s.compressed)),
			humanize.Bytes(uint64(s.uncompressed)),
			decodable,
		})
	}
	table.Render()

	fmt.Fprintf(out, "rows %d, row groups %d, format version %d\n", meta.NumRows, len(meta.RowGroups), meta.Version)
	return nil
}
