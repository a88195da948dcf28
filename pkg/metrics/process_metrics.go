package metrics

import "github.com/prometheus/client_golang/prometheus"

// 采集器自身进程资源，长时间运行时用来观察内存是否随注册表增长

func (m *MetricFactory) NewProcessRSSBytes() prometheus.Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "process_rss_bytes",
		Help:      "Resident memory of the collector process",
	})
	m.reg.MustRegister(g)
	return g
}

func (m *MetricFactory) NewProcessCPUPercent() prometheus.Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "process_cpu_percent",
		Help:      "CPU usage percent of the collector process",
	})
	m.reg.MustRegister(g)
	return g
}

func (m *MetricFactory) NewProcessThreads() prometheus.Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "process_threads",
		Help:      "OS threads used by the collector process",
	})
	m.reg.MustRegister(g)
	return g
}
