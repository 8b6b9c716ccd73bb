// Package config provides configuration defaults and utilities
// for the damonctl application.
//
// This package defines all configurable constants with documented defaults.
// Users can override these values via a kdamond spec file or CLI flags.
package config

// =============================================================================
// Monitoring Interval Defaults
// =============================================================================

const (
	// DefaultSampleUs is the default access sampling interval in
	// microseconds. This matches the kernel's own default.
	// Override via spec file: intervals.sample_us
	DefaultSampleUs = 5000

	// DefaultAggrUs is the default aggregation interval in microseconds.
	// One snapshot is produced per aggregation interval.
	// Override via spec file: intervals.aggr_us
	DefaultAggrUs = 100000

	// DefaultOpsUpdateUs is the default operations-set update interval
	// in microseconds.
	// Override via spec file: intervals.ops_update_us
	DefaultOpsUpdateUs = 1000000
)

// =============================================================================
// Region Defaults
// =============================================================================

const (
	// DefaultMinNrRegions is the default minimum number of monitoring
	// target regions.
	// Override via spec file: nr_regions.min
	DefaultMinNrRegions = 10

	// DefaultMaxNrRegions is the default maximum number of monitoring
	// target regions. More regions give finer-grained results at a
	// higher monitoring overhead.
	// Override via spec file: nr_regions.max
	DefaultMaxNrRegions = 1000
)

// =============================================================================
// Record File Defaults
// =============================================================================

const (
	// DefaultRecordPath is the default monitoring result file name.
	// Override via -i / -o flags.
	DefaultRecordPath = "damon.data"

	// DefaultRecordBufBytes is the default in-kernel result buffer size
	// for the legacy record feature.
	DefaultRecordBufBytes = 1024 * 1024

	// DefaultRecordPerm is the default permission of written result
	// files. Results can reveal the memory layout of monitored
	// processes, so they are not world readable.
	DefaultRecordPerm = 0o600

	// WriteFormatVersion is the binary record format version this tool
	// produces. Version 1 files (int32 target ids) are read-only
	// compatibility input.
	WriteFormatVersion = 2
)

// =============================================================================
// Export Defaults
// =============================================================================

const (
	// DefaultExportCompression is the Parquet compression algorithm
	// used by `damonctl export`.
	// Override via -compression flag.
	DefaultExportCompression = "zstd"

	// DefaultSketchAccuracy is the relative accuracy of the
	// access-frequency percentile sketch (0.01 = 1% error).
	DefaultSketchAccuracy = 0.01
)
