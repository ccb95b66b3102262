// Package get fetches remote job declarations with go-getter.
package get

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-getter"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/mumoshu/runjob/pkg/util/fileutil"
)

// DefaultCacheDir is shared by all runs in a working directory so that a
// repository is only downloaded once.
const DefaultCacheDir = ".runjob"

// Source is a go-getter source split into the part to download and the file
// to read from it.
type Source struct {
	// Dir is downloaded as a directory. Empty when the source names a single file.
	Dir string
	// File is relative to Dir, or the URL of the file itself when Dir is empty.
	File  string
	Query string
}

// IsRemote reports whether src should be fetched rather than read from disk.
func IsRemote(src string) bool {
	if fileutil.Exists(src) {
		return false
	}
	return strings.Contains(src, "::") || strings.Contains(src, "://") || strings.Contains(src, "//")
}

// Split parses `$repo//$path?$query`. Sources without a `//` subdirectory
// separator after the scheme are fetched as a single file.
func Split(src string) (Source, error) {
	s, query := src, ""
	if i := strings.Index(src, "?"); i >= 0 {
		s, query = src[:i], src[i+1:]
	}

	start := 0
	if i := strings.Index(s, "://"); i >= 0 {
		start = i + 3
	}

	sep := strings.Index(s[start:], "//")
	if sep < 0 {
		if s == "" || strings.HasSuffix(s, "/") {
			return Source{}, errors.Errorf("source %s does not name a file", src)
		}
		return Source{File: s, Query: query}, nil
	}

	dir, file := s[:start+sep], s[start+sep+2:]
	if dir == "" || file == "" {
		return Source{}, errors.Errorf("format the source as $repo//$path, like github.com/org/repo//ci/job.yaml: %s", src)
	}
	return Source{Dir: dir, File: file, Query: query}, nil
}

type Fetcher struct {
	CacheDir string
	// Refresh re-downloads sources that are already cached.
	Refresh bool
	Log     log.FieldLogger
}

func (f *Fetcher) cacheKey(s Source) string {
	replacer := strings.NewReplacer("/", "_", ".", "_", ":", "_")
	key := s.Dir
	if key == "" {
		key = s.File
	}
	key = replacer.Replace(key)
	if s.Query != "" {
		key = fmt.Sprintf("%s.%s", key, strings.NewReplacer("&", "_", "=", "_").Replace(s.Query))
	}
	return key
}

// Bytes downloads src into the cache directory and returns the contents of
// the file it names.
func (f *Fetcher) Bytes(ctx context.Context, src string) ([]byte, error) {
	logger := f.Log
	if logger == nil {
		logger = log.StandardLogger()
	}

	s, err := Split(src)
	if err != nil {
		return nil, err
	}

	cacheDir := f.CacheDir
	if cacheDir == "" {
		cacheDir = DefaultCacheDir
	}

	pwd, err := os.Getwd()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	dst := filepath.Join(cacheDir, "sources", f.cacheKey(s))
	target := filepath.Join(dst, filepath.FromSlash(s.File))

	getterSrc, mode := s.Dir, getter.ClientModeDir
	if s.Dir == "" {
		getterSrc, mode = s.File, getter.ClientModeFile
		target = filepath.Join(dst, path.Base(s.File))
	}
	if s.Query != "" {
		getterSrc = getterSrc + "?" + s.Query
	}

	cached := false
	if stat, err := os.Lstat(dst); err == nil {
		if !stat.IsDir() && stat.Mode()&os.ModeSymlink == 0 {
			return nil, errors.Errorf("%s is not a directory. remove it so that it can be used as the download cache", dst)
		}
		cached = !f.Refresh
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "stat %s", dst)
	}

	if cached {
		logger.Debugf("using cached %s from %s", getterSrc, dst)
	} else {
		if err := os.RemoveAll(dst); err != nil {
			return nil, errors.Wrapf(err, "clearing cache %s", dst)
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return nil, errors.Wrapf(err, "creating cache directory")
		}

		clientDst := dst
		if mode == getter.ClientModeFile {
			clientDst = target
		}

		logger.Debugf("downloading %s to %s", getterSrc, clientDst)

		client := &getter.Client{
			Ctx:  ctx,
			Src:  getterSrc,
			Dst:  clientDst,
			Pwd:  pwd,
			Mode: mode,
		}
		if err := client.Get(); err != nil {
			return nil, errors.Wrapf(err, "downloading %s", getterSrc)
		}
	}

	data, err := ioutil.ReadFile(target)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s from %s", s.File, getterSrc)
	}
	return data, nil
}
