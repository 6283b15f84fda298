package memory

import "github.com/gobeaver/filesniff"

func init() {
	filesniff.RegisterDriver("memory", func(cfg *filesniff.Config) (filesniff.Store, error) {
		return New(), nil
	})
}
