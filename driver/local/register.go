package local

import "github.com/gobeaver/filesniff"

func init() {
	filesniff.RegisterDriver("local", func(cfg *filesniff.Config) (filesniff.Store, error) {
		return New(cfg.LocalBasePath)
	})
}
