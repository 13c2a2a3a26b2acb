// Package pipeline turns the raw Terra data file into the monthly CO/AOD
// series and range statistics shown on the MOPITT page.
//
// Data flows one way: Parse -> Filter -> AggregateMonthly / Summarize.
// Every function is pure; callers may invoke them concurrently on
// independent inputs and recompute on every date-range change.
package pipeline
