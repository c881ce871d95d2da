package mirror

import (
	"fmt"

	"github.com/buger/goterm"

	"github.com/portmirror/portmirror/pkg/metrics"
)

// printSummary renders the end-of-run tallies. Color signals the outcome at
// a glance: green for a clean mirror, yellow when some files failed, red for
// an aborted run.
func printSummary(snapshot metrics.Snapshot, completed bool) {
	fmt.Println()
	fmt.Printf("Copied:  %d files (%d bytes)\n",
		snapshot.FilesCopied, snapshot.BytesFetched)
	fmt.Printf("Skipped: %d files\n", snapshot.FilesSkipped)
	fmt.Printf("Failed:  %d files\n", snapshot.FilesFailed)
	fmt.Println(outcomeString(snapshot, completed))
}

func outcomeString(snapshot metrics.Snapshot, completed bool) string {
	if !completed {
		return goterm.Color("Aborted.", goterm.RED)
	}
	if snapshot.FilesFailed > 0 {
		return goterm.Color("OK, with failures.", goterm.YELLOW)
	}
	return goterm.Color("OK.", goterm.GREEN)
}
