// Package httpindex implements remote.Tree over HTTP directory indexes, the
// autogenerated listings served by httpd and friends. Containers are links
// with a trailing slash; file sizes come from a HEAD request per entry.
package httpindex

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/portmirror/portmirror/pkg/errors"
	"github.com/portmirror/portmirror/pkg/remote"
)

// Tree enumerates one or more HTTP index trees. Each storage maps to a base
// URL. Node ids are the entries' absolute URLs: opaque to the walker, direct
// for us.
type Tree struct {
	client   *http.Client
	fs       afero.Fs
	storages map[remote.StorageID]*url.URL
}

// New creates a Tree over the given storage base URLs. The local filesystem
// is where Fetch writes its destination files.
func New(client *http.Client, fs afero.Fs, storages map[remote.StorageID]string) (*Tree, error) {
	if client == nil {
		client = http.DefaultClient
	}

	parsed := map[remote.StorageID]*url.URL{}
	for id, base := range storages {
		baseURL, err := url.Parse(base)
		if err != nil {
			return nil, errors.WithContext(err, fmt.Sprintf("parse url for %q", id))
		}
		if !strings.HasSuffix(baseURL.Path, "/") {
			baseURL.Path += "/"
		}
		parsed[id] = baseURL
	}

	return &Tree{client: client, fs: fs, storages: parsed}, nil
}

// ListChildren fetches the index page for the parent container and parses
// its links into nodes.
func (t *Tree) ListChildren(ctx context.Context, storage remote.StorageID,
	parent remote.NodeID) ([]remote.Node, error) {

	dirURL, err := t.nodeURL(storage, parent)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dirURL.String(), nil)
	if err != nil {
		return nil, errors.WithContext(err, "build request")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, errors.WithContext(err, "get index")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(fmt.Sprintf("index returned %s", resp.Status))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, errors.WithContext(err, "parse index")
	}

	var nodes []remote.Node
	doc.Find("a").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}

		name, isDir, ok := parseEntry(href)
		if !ok {
			return
		}

		childURL := resolve(dirURL, name, isDir)
		child := remote.Node{
			ID:       remote.NodeID(childURL.String()),
			ParentID: parent,
			Name:     name,
		}
		if isDir {
			child.Kind = remote.KindContainer
			child.Size = remote.SizeUnknown
		} else {
			child.Kind = remote.KindFile
			child.Size = t.headSize(ctx, childURL)
		}
		nodes = append(nodes, child)
	})
	return nodes, nil
}

// Fetch downloads the content of node to dest. A partial download is removed
// so that a later run re-fetches rather than trusting a truncated file.
func (t *Tree) Fetch(ctx context.Context, node remote.Node, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, string(node.ID), nil)
	if err != nil {
		return errors.WithContext(err, "build request")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return errors.WithContext(err, "get file")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.New(fmt.Sprintf("file returned %s", resp.Status))
	}

	out, err := t.fs.Create(dest)
	if err != nil {
		return errors.WithContext(err, "create destination")
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		if rmErr := t.fs.Remove(dest); rmErr != nil {
			log.WithError(rmErr).WithField("dest", dest).Warn(
				"Failed to remove partial download")
		}
		return errors.WithContext(err, "write destination")
	}
	return errors.WithContext(out.Close(), "close destination")
}

// nodeURL resolves a node id to the URL to request. The synthetic root id
// maps to the storage's base URL; every other id is already a URL.
func (t *Tree) nodeURL(storage remote.StorageID, node remote.NodeID) (*url.URL, error) {
	if node == remote.RootNode {
		base, ok := t.storages[storage]
		if !ok {
			return nil, errors.New(fmt.Sprintf("unknown storage %q", storage))
		}
		return base, nil
	}
	return url.Parse(string(node))
}

func resolve(dirURL *url.URL, name string, isDir bool) *url.URL {
	resolved := *dirURL
	// Path holds the decoded form; URL.String re-escapes it.
	resolved.Path = dirURL.Path + name
	resolved.RawPath = ""
	if isDir {
		resolved.Path += "/"
	}
	return &resolved
}

// parseEntry extracts the entry name from an index link. Navigation,
// query-string sort links, and absolute links are not entries.
func parseEntry(href string) (name string, isDir bool, ok bool) {
	if href == "" || strings.HasPrefix(href, "?") ||
		strings.HasPrefix(href, "#") || strings.Contains(href, "://") ||
		strings.HasPrefix(href, "/") {
		return "", false, false
	}

	isDir = strings.HasSuffix(href, "/")
	trimmed := strings.TrimSuffix(href, "/")
	if trimmed == "" || trimmed == "." || trimmed == ".." ||
		strings.Contains(trimmed, "/") {
		return "", false, false
	}

	name, err := url.PathUnescape(trimmed)
	if err != nil {
		return "", false, false
	}
	return name, isDir, true
}

// headSize asks the server for an entry's Content-Length. Servers that don't
// answer HEAD, or answer without a length, yield SizeUnknown, which the sync
// decision treats as always out of date.
func (t *Tree) headSize(ctx context.Context, fileURL *url.URL) uint64 {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, fileURL.String(), nil)
	if err != nil {
		return remote.SizeUnknown
	}

	resp, err := t.client.Do(req)
	if err != nil {
		log.WithError(err).WithField("url", fileURL.String()).Debug(
			"HEAD failed, size unknown")
		return remote.SizeUnknown
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK || resp.ContentLength < 0 {
		return remote.SizeUnknown
	}
	return uint64(resp.ContentLength)
}
