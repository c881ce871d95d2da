package mirror

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/portmirror/portmirror/pkg/errors"
	"github.com/portmirror/portmirror/pkg/metrics"
	"github.com/portmirror/portmirror/pkg/remote"
)

// The interval between progress reports during a long walk.
const progressInterval = 15 * time.Second

// LocalDir is the local filesystem collaborator the walker drives. It's
// satisfied by localfs.Dir.
type LocalDir interface {
	Statter
	MkdirIfAbsent(name string) (created bool, err error)
	Enter(name string) error
	Leave() error
	Resolve(name string) string
	Path() string
}

// Walker mirrors remote storages into a local destination tree, one storage
// at a time. It owns the PathStack and shares the FailureBudget across every
// storage of the run.
type Walker struct {
	tree   remote.Tree
	local  LocalDir
	budget *FailureBudget
	stats  *metrics.MirrorCollector
	clock  clockwork.Clock

	stack      *PathStack
	lastReport time.Time
}

// NewWalker creates a walker over the given collaborators. The budget is
// constructed once per run by the caller so that its "whole run aborts"
// semantics are explicit rather than hidden in package state.
func NewWalker(tree remote.Tree, local LocalDir, budget *FailureBudget,
	stats *metrics.MirrorCollector, clock clockwork.Clock) *Walker {

	if stats == nil {
		stats = metrics.NewMirrorCollector()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Walker{
		tree:   tree,
		local:  local,
		budget: budget,
		stats:  stats,
		clock:  clock,
		stack:  NewPathStack(),
	}
}

// Stats returns the run's metrics collector.
func (w *Walker) Stats() *metrics.MirrorCollector {
	return w.stats
}

// Walk mirrors one storage, starting from the synthetic root node with an
// empty path stack. A returned error is fatal to the run: the local tree is
// left in whatever partial state the walk reached.
func (w *Walker) Walk(ctx context.Context, storage remote.StorageID) error {
	if w.stack.Depth() != 0 {
		// Every storage walk starts at the root with an empty stack.
		return errors.New("walk started with a non-empty path stack")
	}

	w.lastReport = w.clock.Now()
	onPath := map[remote.NodeID]bool{}
	return w.walk(ctx, storage, remote.RootNode, onPath)
}

// walk lists the children of parent and dispatches each in the order the
// device reported them.
func (w *Walker) walk(ctx context.Context, storage remote.StorageID,
	parent remote.NodeID, onPath map[remote.NodeID]bool) error {

	children, err := w.tree.ListChildren(ctx, storage, parent)
	if err != nil {
		// Benign: the device's error has been surfaced, the branch simply
		// has no children to process.
		log.WithError(err).WithFields(log.Fields{
			"storage": storage,
			"node":    parent,
			"path":    w.stack.CurrentPath(),
		}).Warn("Failed to list children, skipping branch")
		return nil
	}

	for _, child := range children {
		if err := w.dispatch(ctx, storage, child, onPath); err != nil {
			return err
		}
	}
	return nil
}

func (w *Walker) dispatch(ctx context.Context, storage remote.StorageID,
	child remote.Node, onPath map[remote.NodeID]bool) error {

	if child.Kind == remote.KindContainer {
		return w.descend(ctx, storage, child, onPath)
	}
	return w.syncFile(ctx, child)
}

// descend creates and enters the local directory for container, recurses,
// and restores the previous position. Create, enter, and push are one unit:
// if any of them fails the run aborts, because recovering would leave the
// stack and the entered directory out of step.
func (w *Walker) descend(ctx context.Context, storage remote.StorageID,
	container remote.Node, onPath map[remote.NodeID]bool) error {

	if onPath[container.ID] {
		return errors.CycleError{
			NodeID: string(container.ID),
			Path:   w.stack.CurrentPath() + container.Name,
		}
	}

	log.WithFields(log.Fields{
		"directory": container.Name,
		"path":      w.stack.CurrentPath(),
	}).Debug("Entering directory")

	created, err := w.local.MkdirIfAbsent(container.Name)
	if err != nil {
		return errors.WithContext(err, fmt.Sprintf("create directory %q in %q",
			container.Name, w.local.Path()))
	}
	if created {
		w.stats.DirCreated()
	}

	if err := w.local.Enter(container.Name); err != nil {
		return errors.WithContext(err, fmt.Sprintf("enter directory %q in %q",
			container.Name, w.local.Path()))
	}
	w.stack.Push(container.Name)
	onPath[container.ID] = true

	walkErr := w.walk(ctx, storage, container.ID, onPath)

	delete(onPath, container.ID)
	w.stack.Pop()
	if err := w.local.Leave(); err != nil {
		return errors.WithContext(err, fmt.Sprintf("leave directory %q",
			container.Name))
	}

	log.WithFields(log.Fields{
		"directory": container.Name,
		"path":      w.stack.CurrentPath(),
	}).Debug("Left directory")
	return walkErr
}

// syncFile runs the sync decision for file and fetches it if needed. Fetch
// failures cost budget; everything else about them is per-file.
func (w *Walker) syncFile(ctx context.Context, file remote.Node) error {
	logFileInfo(file, w.stack.CurrentPath())

	copyNeeded, err := ShouldCopy(w.local, file.Name, file.Size)
	if err != nil {
		return errors.WithContext(err, fmt.Sprintf("sync decision for %q in %q",
			file.Name, w.local.Path()))
	}

	if !copyNeeded {
		log.WithFields(log.Fields{
			"file": file.Name,
			"path": w.stack.CurrentPath(),
		}).Debug("Local copy matches, skipping")
		w.stats.FileSkipped()
		return nil
	}

	dest := w.local.Resolve(file.Name)
	if err := w.tree.Fetch(ctx, file, dest); err != nil {
		failures := w.budget.RecordFailure()
		log.WithError(err).WithFields(log.Fields{
			"file":     file.Name,
			"path":     w.stack.CurrentPath(),
			"dest":     dest,
			"failures": failures,
		}).Error("Failed to fetch file")
		w.stats.FileFailed()

		if w.budget.Exceeded() {
			return errors.WithContext(errors.ErrTooManyFailures,
				fmt.Sprintf("%d transfer failures", failures))
		}
		return nil
	}

	fetched := file.Size
	if !file.SizeKnown() {
		fetched = 0
	}
	w.stats.FileCopied(fetched)

	log.WithFields(log.Fields{
		"file": file.Name,
		"path": w.stack.CurrentPath(),
	}).Info("Copied file")

	w.maybeReportProgress()
	return nil
}

// logFileInfo records the remote metadata of a file before the sync decision
// runs, in the spirit of a verbose listing.
func logFileInfo(file remote.Node, path string) {
	fields := log.Fields{
		"id":     file.ID,
		"parent": file.ParentID,
		"name":   file.Name,
		"kind":   file.Kind.String(),
		"path":   path,
	}
	if file.SizeKnown() {
		fields["size"] = file.Size
	} else {
		fields["size"] = "unknown"
	}
	log.WithFields(fields).Debug("Remote file")
}

func (w *Walker) maybeReportProgress() {
	now := w.clock.Now()
	if now.Sub(w.lastReport) < progressInterval {
		return
	}
	w.lastReport = now

	snapshot := w.stats.Snapshot()
	log.WithFields(log.Fields{
		"copied":  snapshot.FilesCopied,
		"skipped": snapshot.FilesSkipped,
		"failed":  snapshot.FilesFailed,
		"bytes":   snapshot.BytesFetched,
	}).Info("Mirror progress")
}
