// Package metrics provides Prometheus metrics for supervised processes and
// the ffmpeg pipelines they run.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pipelineFPS = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fakecam",
		Subsystem: "ffmpeg",
		Name:      "fps",
		Help:      "Current output frame rate of the pipeline",
	}, []string{"process"})

	pipelineFrames = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fakecam",
		Subsystem: "ffmpeg",
		Name:      "frames",
		Help:      "Frames written since the pipeline started",
	}, []string{"process"})

	pipelineDroppedFrames = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fakecam",
		Subsystem: "ffmpeg",
		Name:      "dropped_frames_total",
		Help:      "Total dropped frames",
	}, []string{"process"})

	pipelineDuplicateFrames = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fakecam",
		Subsystem: "ffmpeg",
		Name:      "duplicate_frames_total",
		Help:      "Total duplicate frames",
	}, []string{"process"})

	pipelineSpeed = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fakecam",
		Subsystem: "ffmpeg",
		Name:      "processing_speed",
		Help:      "Pipeline speed relative to real time",
	}, []string{"process"})

	// Local cache for the SSE exporter.
	pipelineCache   = make(map[string]*PipelineMetrics)
	pipelineCacheMu sync.RWMutex
)

// PipelineMetrics holds the latest progress values of one pipeline.
type PipelineMetrics struct {
	FPS             float64
	Frames          float64
	DroppedFrames   float64
	DuplicateFrames float64
	Speed           float64
}

// SetPipelineFPS sets the current frame rate of a pipeline.
func SetPipelineFPS(name string, fps float64) {
	pipelineFPS.WithLabelValues(name).Set(fps)
	updateCache(name, func(m *PipelineMetrics) { m.FPS = fps })
}

// SetPipelineFrames sets the frame counter of a pipeline.
func SetPipelineFrames(name string, frames float64) {
	pipelineFrames.WithLabelValues(name).Set(frames)
	updateCache(name, func(m *PipelineMetrics) { m.Frames = frames })
}

// SetPipelineDroppedFrames sets the dropped frame count of a pipeline.
func SetPipelineDroppedFrames(name string, count float64) {
	pipelineDroppedFrames.WithLabelValues(name).Set(count)
	updateCache(name, func(m *PipelineMetrics) { m.DroppedFrames = count })
}

// SetPipelineDuplicateFrames sets the duplicate frame count of a pipeline.
func SetPipelineDuplicateFrames(name string, count float64) {
	pipelineDuplicateFrames.WithLabelValues(name).Set(count)
	updateCache(name, func(m *PipelineMetrics) { m.DuplicateFrames = count })
}

// SetPipelineSpeed sets the processing speed of a pipeline.
func SetPipelineSpeed(name string, speed float64) {
	pipelineSpeed.WithLabelValues(name).Set(speed)
	updateCache(name, func(m *PipelineMetrics) { m.Speed = speed })
}

// DeletePipelineMetrics removes all metrics for a pipeline.
func DeletePipelineMetrics(name string) {
	pipelineFPS.DeleteLabelValues(name)
	pipelineFrames.DeleteLabelValues(name)
	pipelineDroppedFrames.DeleteLabelValues(name)
	pipelineDuplicateFrames.DeleteLabelValues(name)
	pipelineSpeed.DeleteLabelValues(name)

	pipelineCacheMu.Lock()
	delete(pipelineCache, name)
	pipelineCacheMu.Unlock()
}

// GetPipelineMetrics returns a copy of the values for a pipeline, or nil.
func GetPipelineMetrics(name string) *PipelineMetrics {
	pipelineCacheMu.RLock()
	defer pipelineCacheMu.RUnlock()
	if m, ok := pipelineCache[name]; ok {
		dup := *m
		return &dup
	}
	return nil
}

// GetAllPipelineMetrics returns copies for every pipeline that reported.
func GetAllPipelineMetrics() map[string]*PipelineMetrics {
	pipelineCacheMu.RLock()
	defer pipelineCacheMu.RUnlock()
	result := make(map[string]*PipelineMetrics, len(pipelineCache))
	for name, m := range pipelineCache {
		dup := *m
		result[name] = &dup
	}
	return result
}

func updateCache(name string, update func(*PipelineMetrics)) {
	pipelineCacheMu.Lock()
	defer pipelineCacheMu.Unlock()
	m, ok := pipelineCache[name]
	if !ok {
		m = &PipelineMetrics{}
		pipelineCache[name] = m
	}
	update(m)
}
