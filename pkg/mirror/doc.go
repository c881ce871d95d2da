/*
Package mirror implements portmirror's traversal and sync engine. It walks a
remote storage tree depth-first, recreating containers as local directories
and fetching files whose local copy is missing or has a different size.

The engine is built from four pieces:

1) PathStack -- the in-memory record of the directory the traversal has
   entered, independent of any live filesystem query.
2) Decision -- the size-comparison rule deciding whether a remote file must
   be fetched.
3) FailureBudget -- a bounded counter of transfer failures that aborts the
   whole run once spent.
4) Walker -- the recursive descent that drives the other three against the
   remote.Tree and localfs.Dir collaborators.

The walk is single-threaded and strictly sequential: a container's children
are fully processed before it is left, and each storage is mirrored to
completion before the next begins. Fatal conditions (directory operations
failing, unexpected stat errors, a spent failure budget, a cyclic remote
tree) unwind the entire run; individual fetch failures only cost budget.
*/
package mirror
