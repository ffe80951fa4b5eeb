package services

// Recorder receives business events worth counting. The Prometheus
// implementation lives in internal/server/metrics.
type Recorder interface {
	CartConflict()
	OrderPlaced(totalCents int64)
}

type nopRecorder struct{}

func (nopRecorder) CartConflict()     {}
func (nopRecorder) OrderPlaced(int64) {}
