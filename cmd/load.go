package cmd

import (
	"context"
	"io/ioutil"
	"path"
	"strings"

	"github.com/juju/errors"

	"github.com/mumoshu/runjob/pkg/get"
	"github.com/mumoshu/runjob/pkg/job"
)

// loadJob reads a job declaration from a local file, from stdin when src is
// "-", or from a go-getter source.
func (a *App) loadJob(ctx context.Context, src string) (*job.Job, error) {
	switch {
	case src == "-":
		data, err := ioutil.ReadAll(a.Stdin)
		if err != nil {
			return nil, &job.ConfigError{Source: "stdin", Err: errors.Annotate(err, "reading job from stdin")}
		}
		return job.ParseNamed(data, "stdin")
	case get.IsRemote(src):
		s, err := get.Split(src)
		if err != nil {
			return nil, &job.ConfigError{Source: src, Err: err}
		}
		fetcher := &get.Fetcher{
			CacheDir: a.Viper.GetString("cache_dir"),
			Log:      a.Log,
		}
		data, err := fetcher.Bytes(ctx, src)
		if err != nil {
			return nil, &job.ConfigError{Source: src, Err: err}
		}
		name := path.Base(s.File)
		return job.ParseNamed(data, strings.TrimSuffix(name, path.Ext(name)))
	default:
		return job.LoadFile(src)
	}
}
