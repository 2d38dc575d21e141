package main

import (
	"context"
	"io/ioutil"

	"github.com/grailbio/base/file"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/suhas-arun/bonito/basecall"
)

// loadOpts returns DefaultOpts overlaid with the TOML config at path.  An
// empty path yields the defaults unchanged.  Only keys present in the file
// are overridden; BatchMaxWait is given in nanoseconds.
func loadOpts(ctx context.Context, path string) (opts basecall.Opts, err error) {
	opts = basecall.DefaultOpts
	if path == "" {
		return opts, nil
	}
	in, err := file.Open(ctx, path)
	if err != nil {
		return opts, errors.Wrapf(err, "open config %s", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	data, err := ioutil.ReadAll(in.Reader(ctx))
	if err != nil {
		return opts, errors.Wrapf(err, "read config %s", path)
	}
	err = errors.Wrapf(toml.Unmarshal(data, &opts), "parse config %s", path)
	return opts, err
}
