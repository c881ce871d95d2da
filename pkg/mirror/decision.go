package mirror

import (
	log "github.com/sirupsen/logrus"

	"github.com/portmirror/portmirror/pkg/errors"
	"github.com/portmirror/portmirror/pkg/remote"
)

// Statter is the slice of the local filesystem the sync decision needs: a
// stat by name relative to the currently entered directory.
type Statter interface {
	Stat(name string) (exists bool, size uint64, err error)
}

// ShouldCopy decides whether a remote file must be fetched into the current
// directory. A missing local file or a size mismatch means copy; an exact
// size match means skip. Size equality is the sole criterion -- no content
// hashing, no modification-time comparison.
//
// A stat failure that isn't not-found is unrecoverable: continuing would
// risk silently skipping files, so the error aborts the run.
func ShouldCopy(local Statter, name string, declaredSize uint64) (bool, error) {
	exists, size, err := local.Stat(name)
	if err != nil {
		return false, errors.WithContext(err, "stat")
	}

	if !exists {
		return true, nil
	}

	if declaredSize == remote.SizeUnknown {
		// Abstract entries have no comparable size. They shouldn't normally
		// reach the decision, but if one does we treat it as a perpetual
		// mismatch and let the fetch step sort it out.
		log.WithField("name", name).Debug(
			"Remote size unknown, treating as out of sync")
		return true, nil
	}

	return size != declaredSize, nil
}
