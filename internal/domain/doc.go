// Package domain models NOAA Analysis of Record for Calibration (AORC)
// precipitation fields and the area-mean time series derived from them.
//
// # Data Source
//
// AORC v1.1 is NOAA's gridded retrospective meteorological forcing dataset:
// hourly fields on a ~1 km latitude/longitude grid covering the continental
// US, published as Zarr stores under the NOAA Open Data Dissemination
// program (s3://noaa-nws-aorc-v1-1-1km). The APCP variable carries hourly
// accumulated precipitation in millimetres. An upstream reader slices a
// space-time window out of the store and hands this package an in-memory
// [Field]; nothing here touches the network.
//
// # Grid Conventions
//
// Coordinates are 1-D axes of a regular latitude/longitude grid. Dataset
// axes may run ascending or descending (AORC latitude is ascending, but
// other NOAA products flip it), so axis order is preserved as loaded and
// never assumed. Values are stored row-major in (time, latitude, longitude)
// order.
//
// # Missing Data
//
// NaN is the in-memory missing marker. Readers translate the store's fill
// value into NaN at decode time, so this package never sees raw sentinels.
// APCP is an accumulation and can never be negative: negative cells are
// corrupt values (bad tiles, encoding glitches) and are treated exactly like
// missing cells during aggregation. They are excluded from both the
// numerator and the denominator, never clipped to zero.
//
// # Area Weighting
//
// Grid cells on a latitude/longitude grid shrink toward the poles: a cell's
// east-west extent scales with cos(latitude). [CosineWeights] encodes that,
// which is the standard first-order area correction for regular grids.
// Weights need not sum to one; [AreaMean] normalizes by the weight total of
// the valid cells at each timestep, so masking a cell reweights the rest
// instead of diluting the mean.
//
// # Quality Assurance
//
// [RunQA] evaluates three independent checks (plausible value range,
// missing-timestep fraction, monotonic time axis) and records all of them in
// a [QAReport] rather than stopping at the first failure. The report is
// data, not an error: whether a failed check warns, blocks publication, or
// aborts the run is the driver's policy.
//
// # Run IDs
//
// Run IDs are deterministic SHA-256 hashes of dataset|variable|window. This
// keeps replays idempotent downstream: reprocessing the same window of the
// same dataset produces the same ID. See [RunID].
package domain
