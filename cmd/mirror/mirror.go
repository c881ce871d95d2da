package mirror

import (
	"context"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/portmirror/portmirror/cmd/util"
	"github.com/portmirror/portmirror/pkg/config"
	"github.com/portmirror/portmirror/pkg/errors"
	"github.com/portmirror/portmirror/pkg/localfs"
	"github.com/portmirror/portmirror/pkg/metrics"
	"github.com/portmirror/portmirror/pkg/mirror"
	"github.com/portmirror/portmirror/pkg/remote"
	"github.com/portmirror/portmirror/pkg/remote/httpindex"
)

// New creates a new `mirror` command.
func New() *cobra.Command {
	var configPath string
	cobraCmd := &cobra.Command{
		Use:   "mirror",
		Short: "Mirror the configured device storages to the local destination",
		Long: `Walk each storage listed in the config file and recreate its tree under
the destination directory. Files are only fetched when the local copy is
missing or has a different size, so re-running after an interrupted mirror
picks up where it left off.`,
		Run: func(_ *cobra.Command, _ []string) {
			if err := run(configPath); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cobraCmd.Flags().StringVar(&configPath, "config",
		config.DefaultMirrorConfigPath, "path to the portmirror config file")
	return cobraCmd
}

func run(configPath string) error {
	cfg, err := config.ParseMirror(configPath)
	if err != nil {
		return err
	}

	runID := uuid.New().String()
	log.WithFields(log.Fields{
		"run":         runID,
		"destination": cfg.Destination,
		"storages":    len(cfg.Sources),
	}).Info("Starting mirror run")

	fs := afero.NewOsFs()
	storages := map[remote.StorageID]string{}
	for _, source := range cfg.Sources {
		storages[remote.StorageID(source.Name)] = source.URL
	}

	tree, err := httpindex.New(nil, fs, storages)
	if err != nil {
		return errors.WithContext(err, "set up device connection")
	}

	ctx := context.Background()
	if err := probeStorages(ctx, tree, cfg.Sources); err != nil {
		return err
	}

	collector := metrics.NewMirrorCollector()
	if cfg.MetricsAddr != "" {
		serveMetrics(cfg.MetricsAddr, collector)
	}

	budget := mirror.NewFailureBudget(cfg.FailureLimit)

	// Each storage mirrors into its own subdirectory, processed to
	// completion before the next storage begins. The budget spans all of
	// them: a device with a systemic problem shouldn't get a fresh
	// allowance per storage.
	for _, source := range cfg.Sources {
		dir, err := localfs.New(fs, filepath.Join(cfg.Destination, source.Name))
		if err != nil {
			return errors.WithContext(err, "prepare destination")
		}

		log.WithFields(log.Fields{
			"run":     runID,
			"storage": source.Name,
		}).Info("Mirroring storage")

		walker := mirror.NewWalker(tree, dir, budget, collector, nil)
		if err := walker.Walk(ctx, remote.StorageID(source.Name)); err != nil {
			printSummary(collector.Snapshot(), false)
			return errors.WithContext(err, "mirror "+source.Name)
		}
	}

	printSummary(collector.Snapshot(), true)
	return nil
}

// probeStorages lists each storage's root before anything is written
// locally, so an unreachable device aborts the run up front instead of
// partway through. Device enumeration can block for a while, hence the
// progress printer.
func probeStorages(ctx context.Context, tree remote.Tree, sources []config.Source) error {
	printer := util.NewProgressPrinter(os.Stdout, "Connecting to device")
	go printer.Run()
	defer printer.Stop()

	for _, source := range sources {
		if _, err := tree.ListChildren(ctx, remote.StorageID(source.Name),
			remote.RootNode); err != nil {
			return errors.WithContext(err, "probe storage "+source.Name)
		}
	}
	return nil
}

func serveMetrics(addr string, collector *metrics.MirrorCollector) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	go func() {
		defer util.HandlePanic()
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.WithError(err).WithField("addr", addr).Warn(
				"Metrics endpoint failed")
		}
	}()
}
