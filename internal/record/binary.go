package record

import (
	"encoding/binary"
	"io"
	"time"

	"github.com/xtxerr/damonctl/internal/errors"
)

// Binary record layout: an optional 16-byte magic followed by a
// little-endian int32 format version, then records of
//
//	int64 sec, int64 nsec
//	uint32 nr_tasks
//	per task: target id (int32 in version 1, uint64 otherwise),
//	          uint32 nr_regions,
//	          per region: uint64 start, uint64 end, uint32 nr_accesses
//
// A stream without the magic is version 0 and starts at offset 0.
const binaryMagic = "damon_recfmt_ver"

const recordHeaderLen = 16

// BinaryDecoder reads binary record streams. It is resumable: a
// decode truncated by a time budget leaves the stream positioned at a
// record boundary, and a later Decode call continues from there.
type BinaryDecoder struct {
	r          io.ReadSeeker
	version    int32
	versionSet bool
	headerDone bool
}

// NewBinaryDecoder wraps a fresh stream. The format version is read
// from the stream header on the first Decode call.
func NewBinaryDecoder(r io.ReadSeeker) *BinaryDecoder {
	return &BinaryDecoder{r: r}
}

// NewBinaryDecoderVersion wraps a stream whose header was already
// consumed, as when resuming a paused decode on a new decoder.
func NewBinaryDecoderVersion(r io.ReadSeeker, version int32) *BinaryDecoder {
	return &BinaryDecoder{r: r, version: version, versionSet: true, headerDone: true}
}

// Version returns the stream's format version. Valid after the first
// Decode call.
func (d *BinaryDecoder) Version() int32 {
	return d.version
}

func (d *BinaryDecoder) readHeader() error {
	if d.headerDone {
		if !d.versionSet {
			return errors.ErrUnsupportedFormatVersion
		}
		return nil
	}
	d.headerDone = true

	mark := make([]byte, len(binaryMagic))
	n, err := io.ReadFull(d.r, mark)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return err
	}
	if n == len(binaryMagic) && string(mark) == binaryMagic {
		var version int32
		if err := binary.Read(d.r, binary.LittleEndian, &version); err != nil {
			return errors.MalformedRecordf("truncated version header")
		}
		d.version = version
		d.versionSet = true
		return nil
	}
	// No magic: version 0 data starts at the beginning.
	if _, err := d.r.Seek(0, io.SeekStart); err != nil {
		return err
	}
	d.version = 0
	d.versionSet = true
	return nil
}

// Decode reads records into res until end-of-stream or, when maxSpan
// is positive, until the stream time advances past maxSpan beyond the
// first record of this call. On budget exhaustion the stream is
// rewound to the last record boundary so a later Decode resumes
// cleanly. A partial trailing record header is a clean end of stream;
// truncation inside a record fails with ErrMalformedRecord.
func (d *BinaryDecoder) Decode(res *Result, maxSpan time.Duration) error {
	if err := d.readHeader(); err != nil {
		return err
	}

	var parseStartNs int64
	haveParseStart := false

	for {
		timebin := make([]byte, recordHeaderLen)
		n, err := io.ReadFull(d.r, timebin)
		if n < recordHeaderLen {
			// Clean end of stream, possibly mid-write by the producer.
			return nil
		}
		if err != nil {
			return err
		}
		sec := int64(binary.LittleEndian.Uint64(timebin[0:8]))
		nsec := int64(binary.LittleEndian.Uint64(timebin[8:16]))
		endTimeNs := sec*1000000000 + nsec

		if !haveParseStart {
			parseStartNs = endTimeNs
			haveParseStart = true
		} else if maxSpan > 0 && endTimeNs-parseStartNs > maxSpan.Nanoseconds() {
			if _, err := d.r.Seek(-recordHeaderLen, io.SeekCurrent); err != nil {
				return err
			}
			return nil
		}

		var nrTasks uint32
		if err := binary.Read(d.r, binary.LittleEndian, &nrTasks); err != nil {
			return errors.MalformedRecordf("truncated task count")
		}
		for t := uint32(0); t < nrTasks; t++ {
			targetID, err := d.readTargetID()
			if err != nil {
				return err
			}
			snapshot := NewSnapshot(0, endTimeNs, targetID)

			var nrRegions uint32
			if err := binary.Read(d.r, binary.LittleEndian, &nrRegions); err != nil {
				return errors.MalformedRecordf("truncated region count")
			}
			for r := uint32(0); r < nrRegions; r++ {
				region, err := readBinaryRegion(d.r)
				if err != nil {
					return err
				}
				snapshot.Regions = append(snapshot.Regions, region)
			}
			res.Add(snapshot)
		}
	}
}

func (d *BinaryDecoder) readTargetID() (uint64, error) {
	if d.version == 1 {
		var id int32
		if err := binary.Read(d.r, binary.LittleEndian, &id); err != nil {
			return 0, errors.MalformedRecordf("truncated target id")
		}
		return uint64(int64(id)), nil
	}
	var id uint64
	if err := binary.Read(d.r, binary.LittleEndian, &id); err != nil {
		return 0, errors.MalformedRecordf("truncated target id")
	}
	return id, nil
}

func readBinaryRegion(r io.Reader) (*Region, error) {
	var raw struct {
		Start      uint64
		End        uint64
		NrAccesses uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
		return nil, errors.MalformedRecordf("truncated region")
	}
	// The access count travels unsigned; the fake end-of-window marker
	// comes back as -1 through the signed cast. Age is not carried by
	// the binary format.
	return &Region{
		Start:      raw.Start,
		End:        raw.End,
		NrAccesses: int(int32(raw.NrAccesses)),
		Age:        -1,
	}, nil
}

// EncodeBinary writes res as a binary record stream at the given
// format version, snapshot-major: the i-th snapshot of every target,
// each as its own single-task record.
func EncodeBinary(w io.Writer, res *Result, version int32) error {
	if _, err := w.Write([]byte(binaryMagic)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, version); err != nil {
		return err
	}

	for idx := 0; idx < res.maxSnapshots(); idx++ {
		for _, targetID := range res.targetIDs {
			snaps := res.targetSnapshots[targetID]
			if idx >= len(snaps) {
				continue
			}
			if err := encodeBinarySnapshot(w, snaps[idx], version); err != nil {
				return err
			}
		}
	}
	return nil
}

func encodeBinarySnapshot(w io.Writer, s *Snapshot, version int32) error {
	sec := s.EndTimeNs / 1000000000
	nsec := s.EndTimeNs % 1000000000
	for _, v := range []int64{sec, nsec} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(1)); err != nil {
		return err
	}
	if version == 1 {
		if err := binary.Write(w, binary.LittleEndian, int32(s.TargetID)); err != nil {
			return err
		}
	} else {
		if err := binary.Write(w, binary.LittleEndian, s.TargetID); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s.Regions))); err != nil {
		return err
	}
	for _, region := range s.Regions {
		raw := struct {
			Start      uint64
			End        uint64
			NrAccesses uint32
		}{region.Start, region.End, uint32(int32(region.NrAccesses))}
		if err := binary.Write(w, binary.LittleEndian, raw); err != nil {
			return err
		}
	}
	return nil
}
