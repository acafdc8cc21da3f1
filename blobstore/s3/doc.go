// Package s3 provides an Amazon S3 implementation of blobstore.BlobStore.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket", s3.WithPrefix("entitydb/"))
//	err = db.Snapshot(ctx, store, "nightly.snap")
//
// # Features
//
//   - Range reads for partial fetches
//   - Multipart uploads via the s3/manager uploader
//   - CRC32C checksums on single-shot puts
//   - Automatic pagination for listing
package s3
