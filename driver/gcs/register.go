package gcs

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/gobeaver/filesniff"
)

func init() {
	filesniff.RegisterDriver("gcs", func(cfg *filesniff.Config) (filesniff.Store, error) {
		// Application default credentials unless a service account file is set
		var clientOpts []option.ClientOption
		if cfg.GCSCredentialsFile != "" {
			clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.GCSCredentialsFile))
		}

		client, err := storage.NewClient(context.Background(), clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCS client: %w", err)
		}

		return New(client, cfg.GCSBucket,
			WithPrefix(cfg.GCSPrefix),
			WithPollInterval(cfg.WatchInterval(DefaultPollInterval)),
		), nil
	})
}
