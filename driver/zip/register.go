package zip

import (
	"fmt"

	"github.com/gobeaver/filesniff"
)

func init() {
	filesniff.RegisterDriver("zip", func(cfg *filesniff.Config) (filesniff.Store, error) {
		if cfg.ZipArchivePath == "" {
			return nil, fmt.Errorf("zip driver requires ZipArchivePath to be set")
		}

		return Open(cfg.ZipArchivePath)
	})
}
