// Package metrics collects counters for a mirror run and exposes them in the
// Prometheus format for long-running or scripted use.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace       = "portmirror"
	subsystemMirror = "mirror"
)

// MirrorCollector tracks what a run did to the destination tree. It's safe
// for concurrent use, although the traversal itself is sequential.
type MirrorCollector struct {
	mu sync.Mutex

	dirsCreated  uint64
	filesCopied  uint64
	filesSkipped uint64
	filesFailed  uint64
	bytesFetched uint64

	registry *prometheus.Registry

	dirsCreatedCounter  prometheus.Counter
	filesCopiedCounter  prometheus.Counter
	filesSkippedCounter prometheus.Counter
	filesFailedCounter  prometheus.Counter
	bytesFetchedCounter prometheus.Counter
}

// Snapshot is a point-in-time view of the collected counters.
type Snapshot struct {
	DirsCreated  uint64
	FilesCopied  uint64
	FilesSkipped uint64
	FilesFailed  uint64
	BytesFetched uint64
}

// NewMirrorCollector creates a collector with its own registry so that
// multiple runs in one process don't collide on metric registration.
func NewMirrorCollector() *MirrorCollector {
	c := &MirrorCollector{
		registry: prometheus.NewRegistry(),
		dirsCreatedCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemMirror,
			Name:      "directories_created_total",
			Help:      "Local directories created during the run.",
		}),
		filesCopiedCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemMirror,
			Name:      "files_copied_total",
			Help:      "Files fetched from the device.",
		}),
		filesSkippedCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemMirror,
			Name:      "files_skipped_total",
			Help:      "Files skipped because the local copy matched.",
		}),
		filesFailedCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemMirror,
			Name:      "files_failed_total",
			Help:      "File fetches that failed.",
		}),
		bytesFetchedCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemMirror,
			Name:      "bytes_fetched_total",
			Help:      "Declared bytes of the files fetched from the device.",
		}),
	}

	c.registry.MustRegister(
		c.dirsCreatedCounter,
		c.filesCopiedCounter,
		c.filesSkippedCounter,
		c.filesFailedCounter,
		c.bytesFetchedCounter,
	)
	return c
}

// DirCreated records a directory creation.
func (c *MirrorCollector) DirCreated() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirsCreated++
	c.dirsCreatedCounter.Inc()
}

// FileCopied records a successful fetch of declared size bytes. Abstract
// entries with an unknown size count as zero bytes.
func (c *MirrorCollector) FileCopied(bytes uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filesCopied++
	c.filesCopiedCounter.Inc()
	c.bytesFetched += bytes
	c.bytesFetchedCounter.Add(float64(bytes))
}

// FileSkipped records a file whose local copy already matched.
func (c *MirrorCollector) FileSkipped() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filesSkipped++
	c.filesSkippedCounter.Inc()
}

// FileFailed records a failed fetch.
func (c *MirrorCollector) FileFailed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filesFailed++
	c.filesFailedCounter.Inc()
}

// Snapshot returns the current counter values.
func (c *MirrorCollector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		DirsCreated:  c.dirsCreated,
		FilesCopied:  c.filesCopied,
		FilesSkipped: c.filesSkipped,
		FilesFailed:  c.filesFailed,
		BytesFetched: c.bytesFetched,
	}
}

// Handler returns an HTTP handler serving the collector's registry in the
// Prometheus exposition format.
func (c *MirrorCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
