package metrics

import (
	"log/slog"

	"github.com/bmcpi/efiboot/internal/bootsource"
	"github.com/bmcpi/efiboot/internal/firmware/efi"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "efiboot"

// Resolver produces the boot source on every scrape.
type Resolver interface {
	Resolve() (*bootsource.Result, error)
}

// Collector exports the boot source. Resolution runs on every scrape so the
// values always reflect the current variables.
type Collector struct {
	resolver Resolver
	logger   *slog.Logger

	info   *prometheus.Desc
	pxe    *prometheus.Desc
	errors *prometheus.CounterVec
}

func NewCollector(logger *slog.Logger, resolver Resolver) *Collector {
	return &Collector{
		resolver: resolver,
		logger:   logger,
		info: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "boot_source_info"),
			"Boot source of the running system. Always 1.",
			[]string{"source", "entry", "device", "url", "image"}, nil,
		),
		pxe: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "pxe_boot"),
			"Whether the system was booted over PXE.",
			nil, nil,
		),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolve_errors_total",
			Help:      "Failed boot source resolutions by error kind.",
		}, []string{"kind"}),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.info
	ch <- c.pxe
	c.errors.Describe(ch)
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	defer c.errors.Collect(ch)

	res, err := c.resolver.Resolve()
	if err != nil {
		kind := efi.Kind(err)
		c.logger.Debug("Boot source unavailable for metrics", "kind", kind, "error", err)
		c.errors.WithLabelValues(kind).Inc()
		return
	}

	ch <- prometheus.MustNewConstMetric(c.info, prometheus.GaugeValue, 1,
		res.Source(), res.Entry, res.Device, res.URL, res.Image)

	pxe := 0.0
	if res.PXEBoot {
		pxe = 1
	}
	ch <- prometheus.MustNewConstMetric(c.pxe, prometheus.GaugeValue, pxe)
}
