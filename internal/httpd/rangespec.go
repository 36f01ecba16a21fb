package httpd

import (
	"sort"
	"strconv"
	"strings"
)

// ByteRange is an inclusive [Start, End] sub-interval of a file.
type ByteRange struct {
	Start int64
	End   int64
}

// Length returns the number of bytes covered by the range.
func (b ByteRange) Length() int64 {
	return b.End - b.Start + 1
}

// ParseRanges parses an HTTP Range header value against the actual file
// size. Supported specs, comma-separated:
//
//	start-end   explicit range
//	start-      from start to end of file
//	-suffix     last suffix bytes
//
// A bare "-", an unparsable bound, start > end, a start beyond the file, or
// a suffix larger than the file is a RangeError (416). Multiple ranges must
// not overlap or touch; any such pair is also a RangeError.
func ParseRanges(rangeHeader string, fileSize int64) ([]ByteRange, error) {
	spec := strings.TrimSpace(rangeHeader)
	spec = strings.TrimPrefix(spec, "bytes=")
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, &RangeError{Message: "range limits have not been specified", FileSize: fileSize}
	}

	var ranges []ByteRange
	for _, part := range strings.Split(spec, ",") {
		br, err := parseOneRange(strings.TrimSpace(part), fileSize)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, br)
	}

	if err := checkOverlaps(ranges, fileSize); err != nil {
		return nil, err
	}
	return ranges, nil
}

func parseOneRange(part string, fileSize int64) (ByteRange, error) {
	dash := strings.Index(part, "-")
	if dash < 0 {
		return ByteRange{}, &ArgumentError{Message: "range spec has no dash: " + part}
	}

	startStr := strings.TrimSpace(part[:dash])
	endStr := strings.TrimSpace(part[dash+1:])

	if startStr == "" && endStr == "" {
		return ByteRange{}, &RangeError{Message: "range limits have not been specified", FileSize: fileSize}
	}

	// suffix range: last N bytes
	if startStr == "" {
		suffix, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || suffix <= 0 {
			return ByteRange{}, &RangeError{Message: "invalid suffix length: " + endStr, FileSize: fileSize}
		}
		if suffix > fileSize {
			return ByteRange{}, &RangeError{Message: "suffix length exceeds the file size", FileSize: fileSize}
		}
		return ByteRange{Start: fileSize - suffix, End: fileSize - 1}, nil
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return ByteRange{}, &RangeError{Message: "invalid range start: " + startStr, FileSize: fileSize}
	}

	end := fileSize - 1
	if endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < 0 {
			return ByteRange{}, &RangeError{Message: "invalid range end: " + endStr, FileSize: fileSize}
		}
	}

	if start > end {
		return ByteRange{}, &RangeError{Message: "range start is beyond its end", FileSize: fileSize}
	}
	if start >= fileSize {
		return ByteRange{}, &RangeError{Message: "range start is beyond the end of the file", FileSize: fileSize}
	}
	if end >= fileSize {
		end = fileSize - 1
	}

	return ByteRange{Start: start, End: end}, nil
}

// checkOverlaps rejects range sets where any two ranges overlap or touch:
// full containment, partial overlap, or one range's end equal to another's
// start.
func checkOverlaps(ranges []ByteRange, fileSize int64) error {
	if len(ranges) < 2 {
		return nil
	}
	sorted := make([]ByteRange, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	for i := 1; i < len(sorted); i++ {
		if sorted[i].Start <= sorted[i-1].End {
			return &RangeError{Message: "requested ranges overlap", FileSize: fileSize}
		}
	}
	return nil
}
