// Package metrics collects render counters in a private Prometheus registry
// and writes them in the textfile exposition format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "voxelmap"

// Render is safe for concurrent use. A nil *Render records nothing.
type Render struct {
	reg *prometheus.Registry

	blocksRead    prometheus.Counter
	blocksAirOnly prometheus.Counter
	blocksFailed  prometheus.Counter
	columns       prometheus.Counter
	columnsEarly  prometheus.Counter
	phaseSeconds  *prometheus.GaugeVec
	lastRun       prometheus.Gauge
}

func NewRender() *Render {
	m := &Render{
		reg: prometheus.NewRegistry(),
		blocksRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mapblocks_read_total",
			Help:      "Map blocks fetched and decoded.",
		}),
		blocksAirOnly: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mapblocks_air_only_total",
			Help:      "Map blocks skipped because they only contain air.",
		}),
		blocksFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mapblocks_failed_total",
			Help:      "Map blocks that could not be fetched or decoded.",
		}),
		columns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "columns_total",
			Help:      "Block columns composited.",
		}),
		columnsEarly: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "columns_resolved_early_total",
			Help:      "Columns that became opaque before their lowest block.",
		}),
		phaseSeconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Wall time of each render phase.",
		}, []string{"phase"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the render finished.",
		}),
	}
	m.reg.MustRegister(m.blocksRead, m.blocksAirOnly, m.blocksFailed, m.columns, m.columnsEarly, m.phaseSeconds, m.lastRun)
	return m
}

func (m *Render) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Render) BlockRead(airOnly bool) {
	if m == nil {
		return
	}
	m.blocksRead.Inc()
	if airOnly {
		m.blocksAirOnly.Inc()
	}
}

func (m *Render) BlockFailed() {
	if m == nil {
		return
	}
	m.blocksFailed.Inc()
}

func (m *Render) ColumnDone(early bool) {
	if m == nil {
		return
	}
	m.columns.Inc()
	if early {
		m.columnsEarly.Inc()
	}
}

func (m *Render) Phase(name string, d time.Duration) {
	if m == nil {
		return
	}
	m.phaseSeconds.WithLabelValues(name).Set(d.Seconds())
}

// WriteTextfile stamps the finish time and writes every metric to path,
// for node_exporter's textfile collector.
func (m *Render) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	m.lastRun.SetToCurrentTime()
	return prometheus.WriteToTextfile(path, m.reg)
}
