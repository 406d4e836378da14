package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "modality_dlt"

var labelNames = []string{"mode", "policy", "sink"}

type counterDesc struct {
	desc  *prometheus.Desc
	value func(Snapshot) int64
}

func newCounter(name, help string, value func(Snapshot) int64) counterDesc {
	return counterDesc{
		desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labelNames, nil),
		value: value,
	}
}

// Exporter exposes a Collector's snapshot as Prometheus counters.
// Values are read at scrape time; the Collector stays the source of truth.
type Exporter struct {
	collector *Collector
	counters  []counterDesc
}

// NewExporter returns a prometheus.Collector over c.
func NewExporter(c *Collector) *Exporter {
	return &Exporter{
		collector: c,
		counters: []counterDesc{
			newCounter("streams_started_total", "DLT streams started.", func(s Snapshot) int64 { return s.StreamsStarted }),
			newCounter("streams_completed_total", "DLT streams that ended cleanly.", func(s Snapshot) int64 { return s.StreamsCompleted }),
			newCounter("streams_failed_total", "DLT streams aborted by an error.", func(s Snapshot) int64 { return s.StreamsFailed }),
			newCounter("frames_read_total", "DLT frames read.", func(s Snapshot) int64 { return s.FramesRead }),
			newCounter("bytes_read_total", "Bytes of DLT input consumed.", func(s Snapshot) int64 { return s.BytesRead }),
			newCounter("framing_errors_total", "Framing errors.", func(s Snapshot) int64 { return s.FramingErrors }),
			newCounter("storage_header_errors_total", "Invalid storage headers.", func(s Snapshot) int64 { return s.StorageHeaderErrors }),
			newCounter("messages_invalid_total", "Messages the decoder could not interpret.", func(s Snapshot) int64 { return s.MessagesInvalid }),
			newCounter("messages_filtered_total", "Messages dropped by the decoder filter.", func(s Snapshot) int64 { return s.MessagesFiltered }),
			newCounter("events_sent_total", "Events sent to the ingest client.", func(s Snapshot) int64 { return s.EventsSent }),
			newCounter("timelines_created_total", "Timelines announced.", func(s Snapshot) int64 { return s.TimelinesCreated }),
			newCounter("timeline_switches_total", "Active timeline switches.", func(s Snapshot) int64 { return s.TimelineSwitches }),
			newCounter("sink_write_success_total", "Successful sink writes.", func(s Snapshot) int64 { return s.SinkWriteSuccess }),
			newCounter("sink_write_failure_total", "Failed sink writes.", func(s Snapshot) int64 { return s.SinkWriteFailure }),
		},
	}
}

// Describe implements prometheus.Collector.
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range e.counters {
		ch <- c.desc
	}
}

// Collect implements prometheus.Collector.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	s := e.collector.Snapshot()
	for _, c := range e.counters {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(c.value(s)), s.Mode, s.Policy, s.Sink)
	}
}

var _ prometheus.Collector = (*Exporter)(nil)
