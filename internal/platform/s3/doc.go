// Package s3 uploads run exports to S3-compatible object storage.
//
// Every run writes its exported identifiers and its rendered bundle under
// <fleet>/<run ID>/ in the target bucket.
package s3
