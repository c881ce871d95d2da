package mirror

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portmirror/portmirror/pkg/errors"
	"github.com/portmirror/portmirror/pkg/localfs"
	"github.com/portmirror/portmirror/pkg/remote"
)

const testStorage = remote.StorageID("internal")

// fakeTree is an in-memory remote.Tree. Fetch writes the declared number of
// bytes so that a second walk over the same destination skips everything.
type fakeTree struct {
	fs        afero.Fs
	children  map[remote.NodeID][]remote.Node
	listErr   map[remote.NodeID]error
	failFetch map[remote.NodeID]bool
	fetched   []string
}

func (t *fakeTree) ListChildren(_ context.Context, _ remote.StorageID,
	parent remote.NodeID) ([]remote.Node, error) {

	if err, ok := t.listErr[parent]; ok {
		return nil, err
	}
	return t.children[parent], nil
}

func (t *fakeTree) Fetch(_ context.Context, node remote.Node, dest string) error {
	if t.failFetch[node.ID] {
		return errors.New("device read error")
	}

	size := node.Size
	if size == remote.SizeUnknown {
		size = 0
	}
	if err := afero.WriteFile(t.fs, dest, bytes.Repeat([]byte("x"), int(size)), 0644); err != nil {
		return err
	}
	t.fetched = append(t.fetched, dest)
	return nil
}

func file(id, parent remote.NodeID, name string, size uint64) remote.Node {
	return remote.Node{ID: id, ParentID: parent, Name: name,
		Kind: remote.KindFile, Size: size}
}

func container(id, parent remote.NodeID, name string) remote.Node {
	return remote.Node{ID: id, ParentID: parent, Name: name,
		Kind: remote.KindContainer, Size: remote.SizeUnknown}
}

func newTestWalker(t *testing.T, tree *fakeTree) (*Walker, *localfs.Dir) {
	t.Helper()
	dir, err := localfs.New(tree.fs, "/mirror")
	require.NoError(t, err)
	return NewWalker(tree, dir, NewFailureBudget(DefaultFailureLimit), nil, nil), dir
}

func TestWalkFetchesMissingFile(t *testing.T) {
	tree := &fakeTree{
		fs: afero.NewMemMapFs(),
		children: map[remote.NodeID][]remote.Node{
			remote.RootNode: {file("1", remote.RootNode, "a.txt", 10)},
		},
	}
	walker, _ := newTestWalker(t, tree)

	require.NoError(t, walker.Walk(context.Background(), testStorage))
	assert.Equal(t, []string{"/mirror/a.txt"}, tree.fetched)

	snapshot := walker.Stats().Snapshot()
	assert.Equal(t, uint64(1), snapshot.FilesCopied)
	assert.Equal(t, uint64(10), snapshot.BytesFetched)
}

func TestWalkSkipsMatchingFile(t *testing.T) {
	tree := &fakeTree{
		fs: afero.NewMemMapFs(),
		children: map[remote.NodeID][]remote.Node{
			remote.RootNode: {file("1", remote.RootNode, "a.txt", 10)},
		},
	}
	require.NoError(t, afero.WriteFile(tree.fs, "/mirror/a.txt",
		bytes.Repeat([]byte("x"), 10), 0644))
	walker, _ := newTestWalker(t, tree)

	require.NoError(t, walker.Walk(context.Background(), testStorage))
	assert.Empty(t, tree.fetched)
	assert.Equal(t, uint64(1), walker.Stats().Snapshot().FilesSkipped)
}

func TestWalkRecursesIntoContainer(t *testing.T) {
	tree := &fakeTree{
		fs: afero.NewMemMapFs(),
		children: map[remote.NodeID][]remote.Node{
			remote.RootNode: {container("10", remote.RootNode, "sub")},
			"10":            {file("11", "10", "b.bin", 20)},
		},
	}
	walker, dir := newTestWalker(t, tree)

	require.NoError(t, walker.Walk(context.Background(), testStorage))

	exists, err := afero.DirExists(tree.fs, "/mirror/sub")
	assert.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, []string{"/mirror/sub/b.bin"}, tree.fetched)

	// The walk left every directory it entered.
	assert.Equal(t, "/mirror", dir.Path())
	assert.Equal(t, 0, walker.stack.Depth())
	assert.Equal(t, uint64(1), walker.Stats().Snapshot().DirsCreated)
}

func TestWalkAbortsAfterTooManyFailures(t *testing.T) {
	tree := &fakeTree{
		fs:        afero.NewMemMapFs(),
		failFetch: map[remote.NodeID]bool{},
	}
	var files []remote.Node
	for i := 0; i < 15; i++ {
		id := remote.NodeID(fmt.Sprintf("%d", i+1))
		files = append(files, file(id, remote.RootNode,
			fmt.Sprintf("f%02d.bin", i), 5))
		tree.failFetch[id] = true
	}
	tree.children = map[remote.NodeID][]remote.Node{remote.RootNode: files}
	walker, _ := newTestWalker(t, tree)

	err := walker.Walk(context.Background(), testStorage)
	require.Error(t, err)
	assert.Equal(t, errors.ErrTooManyFailures, errors.RootCause(err))

	// The run stopped at the 11th failure rather than burning through the
	// remaining siblings.
	assert.Equal(t, uint64(11), walker.Stats().Snapshot().FilesFailed)
}

func TestBudgetSharedAcrossStorages(t *testing.T) {
	tree := &fakeTree{
		fs:        afero.NewMemMapFs(),
		failFetch: map[remote.NodeID]bool{},
	}
	var files []remote.Node
	for i := 0; i < 6; i++ {
		id := remote.NodeID(fmt.Sprintf("%d", i+1))
		files = append(files, file(id, remote.RootNode,
			fmt.Sprintf("f%d.bin", i), 5))
		tree.failFetch[id] = true
	}
	tree.children = map[remote.NodeID][]remote.Node{remote.RootNode: files}
	walker, _ := newTestWalker(t, tree)

	// Six failures on the first storage stay within budget. The same budget
	// carries into the second storage, where the count crosses the limit.
	require.NoError(t, walker.Walk(context.Background(), testStorage))

	err := walker.Walk(context.Background(), remote.StorageID("card"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrTooManyFailures, errors.RootCause(err))
	assert.Equal(t, uint64(11), walker.Stats().Snapshot().FilesFailed)
}

func TestListErrorIsBenign(t *testing.T) {
	tree := &fakeTree{
		fs: afero.NewMemMapFs(),
		children: map[remote.NodeID][]remote.Node{
			remote.RootNode: {
				container("10", remote.RootNode, "broken"),
				file("2", remote.RootNode, "a.txt", 3),
			},
		},
		listErr: map[remote.NodeID]error{
			"10": errors.New("device busy"),
		},
	}
	walker, _ := newTestWalker(t, tree)

	// The broken branch yields no children; the sibling is still synced.
	require.NoError(t, walker.Walk(context.Background(), testStorage))
	assert.Equal(t, []string{"/mirror/a.txt"}, tree.fetched)
}

func TestCyclicTreeIsFatal(t *testing.T) {
	tree := &fakeTree{
		fs: afero.NewMemMapFs(),
		children: map[remote.NodeID][]remote.Node{
			remote.RootNode: {container("10", remote.RootNode, "loop")},
			"10":            {container("10", "10", "loop")},
		},
	}
	walker, _ := newTestWalker(t, tree)

	err := walker.Walk(context.Background(), testStorage)
	require.Error(t, err)
	_, ok := errors.RootCause(err).(errors.CycleError)
	assert.True(t, ok, "expected a cycle error, got %v", err)
}

func TestTraversalCompleteness(t *testing.T) {
	tree := &fakeTree{
		fs: afero.NewMemMapFs(),
		children: map[remote.NodeID][]remote.Node{
			remote.RootNode: {
				container("10", remote.RootNode, "music"),
				container("20", remote.RootNode, "photos"),
				file("1", remote.RootNode, "readme.txt", 4),
			},
			"10": {
				container("11", "10", "albums"),
				file("12", "10", "track.mp3", 100),
			},
			"11": {file("13", "11", "cover.jpg", 50)},
			"20": {file("21", "20", "pic.jpg", 75)},
		},
	}
	walker, dir := newTestWalker(t, tree)

	require.NoError(t, walker.Walk(context.Background(), testStorage))

	assert.ElementsMatch(t, []string{
		"/mirror/readme.txt",
		"/mirror/music/track.mp3",
		"/mirror/music/albums/cover.jpg",
		"/mirror/photos/pic.jpg",
	}, tree.fetched)

	assert.Equal(t, 0, walker.stack.Depth())
	assert.Equal(t, "/mirror", dir.Path())

	snapshot := walker.Stats().Snapshot()
	assert.Equal(t, uint64(3), snapshot.DirsCreated)
	assert.Equal(t, uint64(4), snapshot.FilesCopied)
	assert.Equal(t, uint64(229), snapshot.BytesFetched)

	// A second walk over the mirrored destination is a no-op.
	tree.fetched = nil
	require.NoError(t, walker.Walk(context.Background(), testStorage))
	assert.Empty(t, tree.fetched)
}

func TestAbstractFileAlwaysFetched(t *testing.T) {
	tree := &fakeTree{
		fs: afero.NewMemMapFs(),
		children: map[remote.NodeID][]remote.Node{
			remote.RootNode: {{
				ID:       "1",
				ParentID: remote.RootNode,
				Name:     "playlist",
				Kind:     remote.KindAbstract,
				Size:     remote.SizeUnknown,
			}},
		},
	}
	walker, _ := newTestWalker(t, tree)

	require.NoError(t, walker.Walk(context.Background(), testStorage))
	assert.Equal(t, []string{"/mirror/playlist"}, tree.fetched)
	assert.Equal(t, uint64(0), walker.Stats().Snapshot().BytesFetched)
}

// opRecorder wraps a localfs.Dir and records the order of directory
// operations to check that enter/leave (and with them push/pop) stay paired.
type opRecorder struct {
	*localfs.Dir
	ops []string
}

func (r *opRecorder) MkdirIfAbsent(name string) (bool, error) {
	r.ops = append(r.ops, "mkdir "+name)
	return r.Dir.MkdirIfAbsent(name)
}

func (r *opRecorder) Enter(name string) error {
	r.ops = append(r.ops, "enter "+name)
	return r.Dir.Enter(name)
}

func (r *opRecorder) Leave() error {
	r.ops = append(r.ops, "leave")
	return r.Dir.Leave()
}

func TestEnterLeavePairing(t *testing.T) {
	tree := &fakeTree{
		fs: afero.NewMemMapFs(),
		children: map[remote.NodeID][]remote.Node{
			remote.RootNode: {container("10", remote.RootNode, "a")},
			"10":            {container("11", "10", "b")},
		},
	}
	dir, err := localfs.New(tree.fs, "/mirror")
	require.NoError(t, err)

	recorder := &opRecorder{Dir: dir}
	walker := NewWalker(tree, recorder, NewFailureBudget(0), nil, nil)

	require.NoError(t, walker.Walk(context.Background(), testStorage))
	assert.Equal(t, []string{
		"mkdir a", "enter a",
		"mkdir b", "enter b",
		"leave", "leave",
	}, recorder.ops)
}
