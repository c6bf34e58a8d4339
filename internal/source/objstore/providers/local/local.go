// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package local provide access to local storage.
package local

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/runpoll/internal/source/objstore/bucket"
	"github.com/pkg/errors"
)

// tempPrefix marks partially written objects, which are never listed.
const tempPrefix = ".tmp-"

// Config specifies the parameters required to create a local bucket.
type Config struct {
	Directory string // Root directory
}

// New creates a bucket backed by a directory of the local filesystem.
func New(config *Config) (bucket.Bucket, error) {
	if config.Directory == "" {
		return nil, errors.New("a directory is required")
	}
	info, err := os.Stat(config.Directory)
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", config.Directory)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("%s is not a directory", config.Directory)
	}
	return &localBucket{
		filesystem: os.DirFS(config.Directory),
		root:       config.Directory,
	}, nil
}

// localBucket is a bucket backed by a filesystem.
type localBucket struct {
	filesystem fs.FS
	root       string // Empty for read-only filesystems.
}

var _ bucket.Bucket = &localBucket{}

// List implements bucket.Reader. Keys are slash-separated paths
// relative to the root. The matching entries are sorted before paging,
// since a directory walk does not yield a strict lexicographic order.
func (b *localBucket) List(
	ctx context.Context,
	prefix string,
	options *bucket.ListOptions,
	fn func(context.Context, []bucket.Entry) error,
) error {
	var startAfter string
	if options != nil {
		startAfter = options.StartAfter
	}
	entries, err := b.collect(ctx, prefix, startAfter)
	if err != nil {
		return err
	}
	size := options.Size()
	for len(entries) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := min(size, len(entries))
		if err := fn(ctx, entries[:n:n]); err != nil {
			if errors.Is(err, bucket.ErrSkipAll) {
				return nil
			}
			return err
		}
		entries = entries[n:]
	}
	return nil
}

// Open implements bucket.Reader.
func (b *localBucket) Open(_ context.Context, name string) (io.ReadCloser, error) {
	name = path.Clean(name)
	if !fs.ValidPath(name) {
		return nil, errors.Errorf("invalid object name %q", name)
	}
	f, err := b.filesystem.Open(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(bucket.ErrNoSuchKey, name)
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return f, nil
}

// Put implements bucket.Writer. The object is written to a temporary
// file which is then renamed over the destination.
func (b *localBucket) Put(_ context.Context, name string, r io.Reader, _ int64) error {
	if b.root == "" {
		return errors.New("bucket is read-only")
	}
	name = path.Clean(name)
	if !fs.ValidPath(name) || name == "." {
		return errors.Errorf("invalid object name %q", name)
	}
	dest := filepath.Join(b.root, filepath.FromSlash(name))
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.WithStack(err)
	}
	tmp, err := os.CreateTemp(dir, tempPrefix+filepath.Base(dest)+"-*")
	if err != nil {
		return errors.WithStack(err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "write %s", name)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "sync %s", name)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", name)
	}
	return errors.Wrapf(os.Rename(tmp.Name(), dest), "rename %s", name)
}

// collect walks the directory containing prefix and returns the sorted
// entries that match the listing bounds.
func (b *localBucket) collect(ctx context.Context, prefix, startAfter string) ([]bucket.Entry, error) {
	root := "."
	if idx := strings.LastIndex(prefix, "/"); idx > 0 {
		root = path.Clean(prefix[:idx])
	}
	if _, err := fs.Stat(b.filesystem, root); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "stat %s", root)
	}
	var ret []bucket.Entry
	err := fs.WalkDir(b.filesystem, root, func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), tempPrefix) {
			return nil
		}
		if !strings.HasPrefix(name, prefix) || (startAfter != "" && name <= startAfter) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		ret = append(ret, bucket.Entry{Key: name, LastModified: info.ModTime().UTC()})
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walk %s", root)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Key < ret[j].Key })
	return ret, nil
}
