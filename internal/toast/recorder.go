package toast

// Recorder receives bus metrics. The observability package provides the
// Prometheus implementation.
type Recorder interface {
	RecordAnnouncement(variant string)
	RecordDropped()
	RecordMalformed()
	RecordObserverPanic()
	SetObservers(n int)
	AddActiveToasts(surface string, delta int)
}

type noopRecorder struct{}

func (noopRecorder) RecordAnnouncement(string)   {}
func (noopRecorder) RecordDropped()              {}
func (noopRecorder) RecordMalformed()            {}
func (noopRecorder) RecordObserverPanic()        {}
func (noopRecorder) SetObservers(int)            {}
func (noopRecorder) AddActiveToasts(string, int) {}
