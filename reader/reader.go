// Package reader extracts a single byte-array column from parquet files
// into packed in-memory buffers. Row groups are split across a one-shot
// worker pool; each worker decodes its partition into a private buffer,
// and the merge preserves on-disk document order regardless of worker
// count.
package reader

import (
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	pkgerrors "github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/go-mizu/ptext/parquet"
)

var (
	// ErrNotParquet reports a file that does not end in the parquet
	// magic bytes.
	ErrNotParquet = errors.New("reader: not a parquet file")
	// ErrInvalidFooter reports footer metadata inconsistent with the
	// file, such as a footer length or chunk size that cannot be right.
	ErrInvalidFooter = errors.New("reader: invalid footer metadata")
	// ErrNoTextColumn reports a schema without the requested column.
	ErrNoTextColumn = errors.New("reader: text column not found in schema")
)

const (
	magic = "PAR1"

	// maxWorkers caps the per-file pool regardless of CPU count.
	maxWorkers = 16

	// rowsPerGroupEstimate sizes the row-group cap when maxDocs is set;
	// actual group sizes vary, so this is a heuristic, not a limit.
	rowsPerGroupEstimate = 1000

	// minBufferSize is the floor for a worker's packed buffer.
	minBufferSize = 1 << 20
)

// Option configures a Reader.
type Option func(*Reader)

// WithLogger sets the logger used for per-file warnings during
// directory reads. The default discards everything.
func WithLogger(logger log.Logger) Option {
	return func(r *Reader) { r.logger = logger }
}

// WithColumn selects which byte-array leaf column to extract. The
// default is "text".
func WithColumn(name string) Option {
	return func(r *Reader) { r.column = name }
}

// WithMaxWorkers caps the number of decode workers per file below the
// built-in limit.
func WithMaxWorkers(n int) Option {
	return func(r *Reader) { r.workers = n }
}

// Reader reads the text column of parquet files and directories.
type Reader struct {
	logger  log.Logger
	column  string
	workers int
}

// New returns a Reader with the given options applied.
func New(opts ...Option) *Reader {
	r := &Reader{
		logger: log.NewNopLogger(),
		column: "text",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReadTexts reads a parquet file, or every *.parquet file in a
// directory in lexicographic order, and returns up to maxDocs decoded
// documents (0 means unlimited). Within a directory, a file that fails
// to read is logged and skipped; a single-file path propagates its
// error. The caller owns the result and must call Release (or keep it
// reachable) per the ReadResult contract.
func (r *Reader) ReadTexts(path string, maxDocs int) (*ReadResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return r.ReadFile(path, maxDocs)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".parquet") {
			files = append(files, filepath.Join(path, entry.Name()))
		}
	}
	sort.Strings(files)

	var results []*ReadResult
	total := 0
	for _, file := range files {
		if maxDocs > 0 && total >= maxDocs {
			break
		}
		remaining := 0
		if maxDocs > 0 {
			remaining = maxDocs - total
		}
		start := time.Now()
		res, err := r.ReadFile(file, remaining)
		if err != nil {
			level.Warn(r.logger).Log("msg", "skipping unreadable parquet file", "file", file, "err", err)
			continue
		}
		level.Debug(r.logger).Log("msg", "read parquet file", "file", file, "docs", res.Len(), "bytes", res.TotalBytes, "took", time.Since(start))
		results = append(results, res)
		total += res.Len()
	}

	switch len(results) {
	case 0:
		return &ReadResult{}, nil
	case 1:
		return results[0], nil
	}

	merged := &ReadResult{
		Documents: make([]string, 0, total),
	}
	for _, res := range results {
		merged.Documents = append(merged.Documents, res.Documents...)
		merged.Buffers = append(merged.Buffers, res.Buffers...)
		merged.TotalBytes += res.TotalBytes
	}
	return merged, nil
}

// ReadFile reads one parquet file. The file either fully succeeds or
// fully fails: any worker error releases all partial buffers and
// propagates, even though individually corrupt pages inside a healthy
// chunk are tolerated by the chunk decoder.
func (r *Reader) ReadFile(path string, maxDocs int) (*ReadResult, error) {
	meta, err := readFooter(path)
	if err != nil {
		return nil, err
	}

	colIdx, ok := parquet.FindColumnIndex(meta.Schema, r.column)
	if !ok {
		return nil, pkgerrors.Wrapf(ErrNoTextColumn, "%s: column %q", path, r.column)
	}

	rowGroups := meta.RowGroups
	if maxDocs > 0 {
		need := (maxDocs + rowsPerGroupEstimate - 1) / rowsPerGroupEstimate
		if need < len(rowGroups) {
			rowGroups = rowGroups[:need]
		}
	}
	if len(rowGroups) == 0 {
		return &ReadResult{}, nil
	}

	workers := len(rowGroups)
	if n := runtime.NumCPU(); n < workers {
		workers = n
	}
	if workers > maxWorkers {
		workers = maxWorkers
	}
	if r.workers > 0 && r.workers < workers {
		workers = r.workers
	}

	// Contiguous, roughly equal partitions; the remainder lands on the
	// last worker so partition order equals row-group order.
	per := len(rowGroups) / workers
	results := make([]*workerResult, workers)

	g := new(errgroup.Group)
	for w := 0; w < workers-1; w++ {
		w := w
		begin, end := w*per, (w+1)*per
		g.Go(func() error {
			res, err := decodePartition(path, rowGroups[begin:end], colIdx, maxDocs)
			results[w] = res
			return err
		})
	}
	// The caller's goroutine handles the last partition instead of
	// spawning one more.
	last, lastErr := decodePartition(path, rowGroups[(workers-1)*per:], colIdx, maxDocs)
	results[workers-1] = last

	if err := g.Wait(); err != nil {
		return nil, pkgerrors.Wrapf(err, "reading %s", path)
	}
	if lastErr != nil {
		return nil, pkgerrors.Wrapf(lastErr, "reading %s", path)
	}

	return mergeWorkerResults(results, maxDocs), nil
}

// ReadMetadata parses just the footer of a parquet file.
func ReadMetadata(path string) (*parquet.FileMetaData, error) {
	return readFooter(path)
}

// readFooter validates the trailing magic, reads the footer bytes, and
// parses them into a FileMetaData. The metadata is only used to compute
// byte ranges and is discarded before decoding starts.
func readFooter(path string) (*parquet.FileMetaData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	if size < 12 {
		return nil, pkgerrors.Wrapf(ErrNotParquet, "%s", path)
	}

	tail := make([]byte, 8)
	if _, err := f.ReadAt(tail, size-8); err != nil {
		return nil, err
	}
	if string(tail[4:]) != magic {
		return nil, pkgerrors.Wrapf(ErrNotParquet, "%s", path)
	}
	footerLen := int64(binary.LittleEndian.Uint32(tail[:4]))
	footerStart := size - 8 - footerLen
	if footerStart < 0 {
		return nil, pkgerrors.Wrapf(ErrInvalidFooter, "%s: footer length %d exceeds file size %d", path, footerLen, size)
	}

	footer := make([]byte, footerLen)
	if _, err := io.ReadFull(io.NewSectionReader(f, footerStart, footerLen), footer); err != nil {
		return nil, err
	}
	meta, err := parquet.ParseFileMetaData(footer)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "%s", path)
	}
	return meta, nil
}

// workerResult is one worker's packed output: every decoded value's
// bytes appended into one private buffer, with lengths recorded so the
// merge can slice documents back out without copying.
type workerResult struct {
	buf     []byte
	lengths []int
}

// decodePartition decodes a contiguous run of row groups through a
// private file handle. Handles are independent and the byte ranges
// disjoint, so workers need no locking.
func decodePartition(path string, rowGroups []parquet.RowGroupMeta, colIdx, maxDocs int) (*workerResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// Size the packed buffer from chunk metadata with a 10% margin.
	var estimate int64
	for _, rg := range rowGroups {
		if colIdx < len(rg.Columns) {
			estimate += rg.Columns[colIdx].TotalUncompressed
		}
	}
	estimate += estimate / 10
	if estimate < minBufferSize {
		estimate = minBufferSize
	}

	res := &workerResult{buf: make([]byte, 0, estimate)}
	for i, rg := range rowGroups {
		if colIdx >= len(rg.Columns) {
			continue
		}
		if maxDocs > 0 && len(res.lengths) >= maxDocs {
			break
		}
		chunkMeta := rg.Columns[colIdx]
		if chunkMeta.TotalCompressed < 0 {
			return res, pkgerrors.Wrapf(ErrInvalidFooter, "row group %d: chunk size %d", i, chunkMeta.TotalCompressed)
		}

		chunk := make([]byte, chunkMeta.TotalCompressed)
		n, err := f.ReadAt(chunk, chunkMeta.StartOffset())
		if err != nil && err != io.EOF {
			return res, pkgerrors.Wrapf(err, "row group %d", i)
		}

		values, err := decodeColumnChunk(chunk[:n], chunkMeta, maxDocs)
		if err != nil {
			return res, pkgerrors.Wrapf(err, "row group %d", i)
		}
		for _, v := range values {
			res.buf = append(res.buf, v...)
			res.lengths = append(res.lengths, len(v))
		}
	}
	return res, nil
}

// mergeWorkerResults slices every worker's packed buffer into the final
// document list, worker 0 first, so the output order matches a
// single-threaded decode.
func mergeWorkerResults(results []*workerResult, maxDocs int) *ReadResult {
	total := 0
	for _, res := range results {
		total += len(res.lengths)
	}
	if maxDocs > 0 && total > maxDocs {
		total = maxDocs
	}

	out := &ReadResult{
		Documents: make([]string, 0, total),
		Buffers:   make([][]byte, 0, len(results)),
	}
	for _, res := range results {
		out.Buffers = append(out.Buffers, res.buf)
		off := 0
		for _, n := range res.lengths {
			if len(out.Documents) >= total {
				break
			}
			out.Documents = append(out.Documents, viewString(res.buf[off:off+n]))
			out.TotalBytes += uint64(n)
			off += n
		}
	}
	return out
}
