// Package minio stores EntityDB snapshots in MinIO and other S3-compatible
// servers (Ceph, Garage, SeaweedFS) through the MinIO Go client.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := minioblob.NewStore(client, "backups", "entitydb/")
//	err = db.Snapshot(ctx, store, "snap-001")
//
// Streaming writes use an unsized PutObject, which the client turns into
// a multipart upload for large snapshots.
package minio
