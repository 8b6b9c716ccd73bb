package record

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Tracer-script text format: one region per line, such as
//
//	kdamond.0  4452 [000] 82877.315633: damon:damon_aggregated: \
//	    target_id=18446623435582458880 nr_regions=17 \
//	    140731667070976-140731668037632: 0 3
//
// Early producers omit the trailing age token, so both 9 and 10
// token lines are accepted. Lines that do not match are skipped.
const perfScriptMarker = "damon:damon_aggregated:"

// DecodePerfScript reads text-format lines into res. When maxSpan is
// positive, decoding stops once the stream time advances past maxSpan
// beyond the first accepted line; the over-budget line is dropped
// since a text stream cannot be un-read.
func DecodePerfScript(r io.Reader, res *Result, maxSpan time.Duration) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var parseStartNs int64
	haveParseStart := false
	nrReadRegions := 0

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 9 && len(fields) != 10 {
			continue
		}
		if fields[4] != perfScriptMarker {
			continue
		}
		endTimeNs, ok := parseTimestampNs(fields[3])
		if !ok {
			continue
		}
		if !haveParseStart {
			parseStartNs = endTimeNs
			haveParseStart = true
		} else if maxSpan > 0 && endTimeNs-parseStartNs > maxSpan.Nanoseconds() {
			return scanner.Err()
		}

		targetID, ok := parseTaggedUint(fields[5], "target_id")
		if !ok {
			continue
		}
		nrRegions, ok := parseTaggedUint(fields[6], "nr_regions")
		if !ok {
			continue
		}
		region, ok := parsePerfScriptRegion(fields)
		if !ok {
			continue
		}

		if nrReadRegions == 0 {
			res.Add(NewSnapshot(0, endTimeNs, targetID))
		}
		snaps := res.Snapshots(targetID)
		snapshot := snaps[len(snaps)-1]
		snapshot.Regions = append(snapshot.Regions, region)

		nrReadRegions++
		if uint64(nrReadRegions) == nrRegions {
			nrReadRegions = 0
		}
	}
	return scanner.Err()
}

// parseTimestampNs converts a "82877.315633:" seconds token to
// nanoseconds.
func parseTimestampNs(token string) (int64, bool) {
	token = strings.TrimSuffix(token, ":")
	secs, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, false
	}
	return int64(secs * 1000000000), true
}

// parseTaggedUint parses a "tag=1234" token.
func parseTaggedUint(token, tag string) (uint64, bool) {
	value, found := strings.CutPrefix(token, tag+"=")
	if !found {
		return 0, false
	}
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// parsePerfScriptRegion decodes the "<start>-<end>: <count> [<age>]"
// tail of an accepted line.
func parsePerfScriptRegion(fields []string) (*Region, bool) {
	addrs := strings.TrimSuffix(fields[7], ":")
	startText, endText, found := strings.Cut(addrs, "-")
	if !found {
		return nil, false
	}
	start, err := strconv.ParseUint(startText, 10, 64)
	if err != nil {
		return nil, false
	}
	end, err := strconv.ParseUint(endText, 10, 64)
	if err != nil {
		return nil, false
	}
	nrAccesses, err := strconv.Atoi(fields[8])
	if err != nil {
		return nil, false
	}
	age := -1
	if len(fields) == 10 {
		if age, err = strconv.Atoi(fields[9]); err != nil {
			return nil, false
		}
	}
	return &Region{Start: start, End: end, NrAccesses: nrAccesses, Age: age}, true
}

// EncodePerfScript writes res as tracer-script text, snapshot-major
// like the binary encoder. Regions without an age produce the legacy
// 9-token form.
func EncodePerfScript(w io.Writer, res *Result) error {
	bw := bufio.NewWriter(w)
	for idx := 0; idx < res.maxSnapshots(); idx++ {
		for _, targetID := range res.targetIDs {
			snaps := res.targetSnapshots[targetID]
			if idx >= len(snaps) {
				continue
			}
			if err := encodePerfScriptSnapshot(bw, snaps[idx]); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

func encodePerfScriptSnapshot(w io.Writer, s *Snapshot) error {
	for _, region := range s.Regions {
		age := ""
		if region.Age >= 0 || region.isFake() {
			age = fmt.Sprintf(" %d", region.Age)
		}
		_, err := fmt.Fprintf(w, "kdamond.x xxxx xxxx %f: %s target_id=%d nr_regions=%d %d-%d: %d%s\n",
			float64(s.EndTimeNs)/1000000000.0, perfScriptMarker,
			s.TargetID, len(s.Regions), region.Start, region.End,
			region.NrAccesses, age)
		if err != nil {
			return err
		}
	}
	return nil
}
