package sftp

import (
	"errors"
	"fmt"
	"os"

	"github.com/gobeaver/filesniff"
)

func init() {
	filesniff.RegisterDriver("sftp", func(cfg *filesniff.Config) (filesniff.Store, error) {
		if cfg.SFTPHost == "" {
			return nil, errors.New("SFTP host is required")
		}

		conn := Config{
			Host:     cfg.SFTPHost,
			Port:     cfg.SFTPPort,
			Username: cfg.SFTPUsername,
			Password: cfg.SFTPPassword,
			BasePath: cfg.SFTPBasePath,
		}
		if cfg.SFTPPrivateKey != "" {
			key, err := os.ReadFile(cfg.SFTPPrivateKey)
			if err != nil {
				return nil, fmt.Errorf("failed to read private key: %w", err)
			}
			conn.PrivateKey = key
		}

		return New(conn, WithPollInterval(cfg.WatchInterval(DefaultPollInterval)))
	})
}
