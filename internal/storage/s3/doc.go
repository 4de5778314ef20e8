/*
Package s3 provides a CargoShip-optimized AWS S3 backend: object
get/put/head/delete, prefix-based directory listing, connection pooling,
and a real multipart upload path for large writes.

# Architecture Overview

	┌─────────────────────────────────────────────┐
	│         internal/backends/s3.Adapter         │
	│        (backend.Adapter translation)         │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│                 s3.Backend                   │
	│   GetObject / PutObject / PutObjectMultipart  │
	│   HeadObject / DeleteObject / ListDirectory   │
	└─────────────────────────────────────────────┘
	              │                    │
	┌─────────────┴──────┐   ┌─────────┴─────────┐
	│  CargoShip          │   │  Connection Pool   │
	│  Transporter        │   │  (pooled s3.Client)│
	└─────────────────────┘   └────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│                AWS S3 Service                │
	└─────────────────────────────────────────────┘

# CargoShip Integration

PutObject prefers the CargoShip transporter's optimized upload path
(BBR/CUBIC-tuned concurrent streams) and falls back to a plain S3
PutObject call if the transporter returns an error.

# Multipart Uploads

PutObjectMultipart buffers an io.Reader into fixed 5 MiB parts
(minMultipartPartSize) and issues CreateMultipartUpload, sequential
UploadParts, and CompleteMultipartUpload. Any part failure aborts the
upload with AbortMultipartUpload. It does not consult
Config.ShouldUseMultipart or GetOptimalChunkSize; the part size is the
same for every upload.

# Connection Pooling

A ConnectionPool creates *s3.Client instances on demand, up to
Config.PoolSize (default 8), and keeps returned clients for reuse.
Warmup pre-fills the pool; NewBackend does not call it. Every backend
method borrows and returns a client around its AWS SDK call rather than
building one per request.

# Error Handling

translateError maps AWS SDK error types to pkg/errors.ObjectFSError
values (NotFound for NoSuchKey/NoSuchBucket, UpstreamError otherwise) so
callers branch on Code rather than string-matching SDK errors.

# Metrics

BackendMetrics tracks request counts, error counts, bytes uploaded/
downloaded, and average latency; GetMetrics returns a snapshot.
*/
package s3
