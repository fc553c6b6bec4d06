// Package telemetry holds the bounded real-time history that feeds the
// dashboard charts, and the resistance metric derived from it.
//
// Each channel keeps at most a fixed number of samples in arrival order.
// Appending to a full channel evicts its single oldest sample. A missing
// reading is stored as the NoData sentinel (NaN) so gaps stay aligned with
// the other channels on the shared sequence axis.
package telemetry
