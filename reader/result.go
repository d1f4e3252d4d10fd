package reader

import "unsafe"

// ReadResult holds decoded documents as zero-copy views into packed
// per-worker buffers. Buffers is the single release unit: Release (or
// Repack, which swaps the backing storage) invalidates every string in
// Documents, so callers must not retain them past either call. Callers
// that need the documents in one contiguous allocation call Repack
// before caching anything.
type ReadResult struct {
	Documents  []string
	Buffers    [][]byte
	TotalBytes uint64
}

// Len returns the number of decoded documents.
func (r *ReadResult) Len() int { return len(r.Documents) }

// Size returns the summed byte length of all documents.
func (r *ReadResult) Size() uint64 { return r.TotalBytes }

// Release drops the documents and their backing buffers. Every
// Documents slice handed out before this call becomes invalid.
func (r *ReadResult) Release() {
	r.Documents = nil
	r.Buffers = nil
	r.TotalBytes = 0
}

// Repack copies every document into one new contiguous buffer, releases
// the old buffers, and rewrites Documents to point into the new one.
// Document count, order, content, and TotalBytes are unchanged;
// Buffers shrinks to length 1.
func (r *ReadResult) Repack() {
	packed := make([]byte, 0, r.TotalBytes)
	lengths := make([]int, len(r.Documents))
	for i, doc := range r.Documents {
		packed = append(packed, doc...)
		lengths[i] = len(doc)
	}
	docs := make([]string, len(r.Documents))
	off := 0
	for i, n := range lengths {
		docs[i] = viewString(packed[off : off+n])
		off += n
	}
	r.Documents = docs
	r.Buffers = [][]byte{packed}
}

// viewString returns a string sharing the bytes of b. The result is
// only valid while the backing buffer is retained and unmodified.
func viewString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}
