package record

import (
	"fmt"
	"io"
	"os"
	"time"
	"unicode/utf8"

	"github.com/xtxerr/damonctl/config"
	"github.com/xtxerr/damonctl/internal/errors"
	"github.com/xtxerr/damonctl/internal/logging"
)

var log = logging.Component("record")

// Format names a result stream encoding.
type Format string

const (
	// FormatRecord is the native binary encoding.
	FormatRecord Format = "record"
	// FormatPerfScript is the tracer-script text encoding.
	FormatPerfScript Format = "perf_script"
)

// ValidFormat reports whether the format tag is known.
func ValidFormat(f Format) bool {
	return f == FormatRecord || f == FormatPerfScript
}

// SniffFormat classifies a result file by content: the binary magic
// marks a record stream; otherwise plausible text is treated as
// tracer-script output and everything else as a headerless binary
// stream. The two formats share no common header, so inspection is
// the only way to tell them apart.
func SniffFormat(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", err
	}
	head = head[:n]

	if len(head) >= len(binaryMagic) && string(head[:len(binaryMagic)]) == binaryMagic {
		return FormatRecord, nil
	}
	if looksLikeText(head) {
		return FormatPerfScript, nil
	}
	return FormatRecord, nil
}

func looksLikeText(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	for _, b := range data {
		if b == 0 {
			return false
		}
	}
	return utf8.Valid(data)
}

// File is an open result stream. Binary streams support repeated
// budgeted Read calls that resume at the record boundary where the
// previous call stopped.
type File struct {
	f      *os.File
	format Format
	dec    *BinaryDecoder
}

// Open sniffs and opens a result file.
func Open(path string) (*File, error) {
	format, err := SniffFormat(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	rf := &File{f: f, format: format}
	if format == FormatRecord {
		rf.dec = NewBinaryDecoder(f)
	}
	log.Debug("opened result file", "path", path, "format", format)
	return rf, nil
}

// Format returns the detected stream format.
func (rf *File) Format() Format {
	return rf.format
}

// Version returns the binary format version. Zero for text streams
// and before the first Read.
func (rf *File) Version() int32 {
	if rf.dec == nil {
		return 0
	}
	return rf.dec.Version()
}

// Read decodes the stream into a normalized result. A positive
// maxSpan bounds how far the stream time may advance in this call;
// for binary streams a later Read continues where this one stopped.
func (rf *File) Read(maxSpan time.Duration) (*Result, error) {
	res := NewResult()
	var err error
	if rf.format == FormatRecord {
		err = rf.dec.Decode(res, maxSpan)
	} else {
		err = DecodePerfScript(rf.f, res, maxSpan)
	}
	if err != nil {
		return nil, err
	}
	normalize(res)
	return res, nil
}

// Close releases the underlying file.
func (rf *File) Close() error {
	return rf.f.Close()
}

// ParseFile decodes a whole result file.
func ParseFile(path string) (*Result, Format, error) {
	rf, err := Open(path)
	if err != nil {
		return nil, "", err
	}
	defer rf.Close()
	res, err := rf.Read(0)
	if err != nil {
		return nil, rf.format, fmt.Errorf("parsing %s: %w", path, err)
	}
	return res, rf.format, nil
}

// normalize infers snapshot start times and strips fake end-of-window
// markers. Only end times are carried on the wire, so each target's
// first snapshot start is synthesized as end minus the mean snapshot
// spacing of its sequence; targets with fewer than two snapshots have
// no inferable spacing and are left as-is.
func normalize(res *Result) {
	for _, targetID := range res.TargetIDs() {
		snaps := res.Snapshots(targetID)
		if len(snaps) < 2 {
			continue
		}
		first, last := snaps[0], snaps[len(snaps)-1]
		spacing := (last.EndTimeNs - first.EndTimeNs) / int64(len(snaps)-1)
		first.StartTimeNs = first.EndTimeNs - spacing

		if res.StartTimeNs == 0 {
			res.StartTimeNs = first.StartTimeNs
			res.EndTimeNs = last.EndTimeNs
		}

		if len(snaps) == 2 && len(snaps[1].Regions) == 1 && snaps[1].Regions[0].isFake() {
			res.setSnapshots(targetID, snaps[:1])
		}
	}
	res.NrSnapshots = res.maxSnapshots()
}

// WriteFile encodes res to a file in the given format. Targets with a
// single snapshot get a synthetic trailing snapshot so the next decode
// can infer the observation duration; res itself is not modified.
func WriteFile(res *Result, path string, format Format, perm os.FileMode) error {
	padded := withFakeSnapshots(res)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer f.Close()

	switch format {
	case FormatRecord:
		err = EncodeBinary(f, padded, config.WriteFormatVersion)
	case FormatPerfScript:
		err = EncodePerfScript(f, padded)
	default:
		return fmt.Errorf("%w: %q", errors.ErrUnknownFileType, format)
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	log.Debug("wrote result file", "path", path, "format", format,
		"snapshots", padded.NrSnapshots)
	return f.Close()
}

// withFakeSnapshots returns a shallow copy of res where every
// single-snapshot target carries the synthetic end-of-window marker.
func withFakeSnapshots(res *Result) *Result {
	padded := NewResult()
	padded.StartTimeNs = res.StartTimeNs
	padded.EndTimeNs = res.EndTimeNs
	for _, targetID := range res.TargetIDs() {
		for _, s := range res.Snapshots(targetID) {
			padded.Add(s)
		}
		snaps := padded.Snapshots(targetID)
		if len(snaps) == 1 {
			only := snaps[0]
			duration := only.EndTimeNs - only.StartTimeNs
			fake := NewSnapshot(only.EndTimeNs, only.EndTimeNs+duration, targetID)
			fake.Regions = []*Region{{NrAccesses: fakeVal, Age: fakeVal}}
			padded.Add(fake)
		}
	}
	padded.NrSnapshots = padded.maxSnapshots()
	return padded
}
