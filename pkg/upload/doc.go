// Package upload stores component sources and preview images.
//
// Two kinds of storage live here. Durable blobs (Blobs) hold the code and
// demo files of published components and are addressed by key; every
// blob has a public URL. Temporary uploads (TempStore) hold preview images
// posted over plain HTTP before the submission that uses them is sent:
//
//  1. The browser POSTs the image to the upload Handler.
//  2. The handler sniffs the bytes, stores them, and returns a temp_id.
//  3. The submission carries the temp_id; at submit time the server
//     claims the temp file and copies it into durable storage.
//
// DiskStore keeps both on the local filesystem and can serve blobs over
// HTTP. S3Store keeps both in an S3 bucket (or any S3-compatible service).
//
// # Security
//
// The handler checks Config.AllowedTypes against the type detected by
// http.DetectContentType; the client's part Content-Type is ignored.
// Blob keys are canonicalized by CleanKey, which rejects traversal.
package upload
