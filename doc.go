// Package filesniff identifies the media type of files from their content.
//
// Classification never trusts names or declared content types: it reads at
// most the first and the last 4 KiB of an object and runs them through the
// ordered rule tables of package [magic]. Only byte acquisition can fail;
// the classification itself is pure.
//
// # Sources
//
// Bytes are captured through a [Source]:
//
//   - [FromBytes] for in-memory blobs
//   - [FromReaderAt] for random-access objects of known size
//   - [FromFile] for local files
//   - [FromReader] for forward-only streams
//   - [FromStore] for objects of a [Store], using two ranged reads
//
//	r, err := filesniff.Classify(ctx, filesniff.FromFile("upload.bin"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(r.Ext, r.MIME) // png image/png
//
// # Storage Backends
//
// Stores are read through drivers, each a separate Go module:
//
//   - Local filesystem (github.com/gobeaver/filesniff/driver/local)
//   - In-memory (github.com/gobeaver/filesniff/driver/memory)
//   - ZIP archives (github.com/gobeaver/filesniff/driver/zip)
//   - Amazon S3 (github.com/gobeaver/filesniff/driver/s3)
//   - Google Cloud Storage (github.com/gobeaver/filesniff/driver/gcs)
//   - Azure Blob Storage (github.com/gobeaver/filesniff/driver/azure)
//   - SFTP (github.com/gobeaver/filesniff/driver/sftp)
//
// Importing a driver registers it for [New]:
//
//	import _ "github.com/gobeaver/filesniff/driver/s3"
//
//	sniffer, err := filesniff.NewFromEnv() // BEAVER_FILESNIFF_DRIVER=s3 ...
//	r, err := sniffer.Classify(ctx, "uploads/avatar")
//
// # Sniffer
//
// A [Sniffer] binds an engine to a store and adds an optional result cache,
// a [policy.Policy] for [Sniffer.Check], bounded batch classification
// ([Sniffer.ClassifyAll], [Sniffer.ClassifyTree]) and classification of
// compressed payloads ([Sniffer.ClassifyNested]).
//
// # Watching
//
// Stores implementing [CanWatch] deliver [ChangeToken]s; other stores can be
// polled with [WatchByPolling]. [OnChange] keeps a watch alive:
//
//	filesniff.OnChange(ctx,
//	    func() (filesniff.ChangeToken, error) { return w.Watch(ctx, "inbox/**") },
//	    func(paths []string) { results, _ := sniffer.ClassifyAll(ctx, paths) },
//	)
//
// # Configuration
//
// [Config] is loaded from BEAVER_FILESNIFF_* environment variables. Use
// [WithPrefix] for a different prefix.
package filesniff
