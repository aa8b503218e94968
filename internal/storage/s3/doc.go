/*
Package s3 implements the retrieval engine's object store on Amazon S3 and
S3-compatible services.

# Architecture Overview

	┌─────────────────────────────────────────────────────────────┐
	│                  types.ObjectStore                          │
	│   ListObjectsPage │ HeadObject │ RestoreObject │ GetObject  │
	└─────────────────────────────────────────────────────────────┘
	                          │
	┌─────────────────────────────────────────────────────────────┐
	│                        Store                                │
	│  error translation │ per-call timeout │ MetricsCollector    │
	└─────────────────────────────────────────────────────────────┘
	                          │
	┌─────────────────────────────────────────────────────────────┐
	│                    ClientManager                            │
	│   AWS config loading │ bounded credential verification      │
	└─────────────────────────────────────────────────────────────┘
	                          │
	                     AWS S3 Service

# Client Construction

NewClientManager loads the standard AWS configuration chain (environment,
shared config files, instance roles) and applies overrides from Config:
region, endpoint, path-style addressing, named profile and static keys.

Credentials are resolved before the client is handed out. Resolution is
attempted at most Config.AuthAttempts times; an optional AuthFailureFunc may
supply a replacement provider between attempts. When every attempt fails the
constructor returns AUTHENTICATION_FAILED with the last cause attached.

	cm, err := s3.NewClientManager(ctx, &s3.Config{
	    Region:         "us-west-2",
	    Endpoint:       "http://localhost:9000",
	    ForcePathStyle: true,
	}, logger, nil)
	if err != nil {
	    return err
	}
	store := cm.Store()

SDK-level retries default to a single attempt. Retries are owned by the
retrieval pipeline so that every backend call shares one policy.

# Storage Classes

GLACIER and DEEP_ARCHIVE objects must be restored before their bodies can be
read. GLACIER_IR, the infrequent-access classes and Intelligent Tiering are
readable directly. HeadObject omits the storage class header for STANDARD
objects; Store reports those as STANDARD.

Restores are requested with RestoreObject using the configured number of
days and the SDK tier mapped from types.TierSpeed. A RestoreAlreadyInProgress
response is treated as success.

# Error Handling

SDK errors are translated into pkg/errors codes:

	NoSuchKey, NotFound               → OBJECT_NOT_FOUND
	NoSuchBucket                      → BUCKET_NOT_FOUND
	AccessDenied                      → ACCESS_DENIED
	InvalidAccessKeyId, ...           → AUTHENTICATION_FAILED
	InvalidObjectState                → INVALID_OBJECT_STATE
	SlowDown, Throttling              → SLOW_DOWN
	InternalError, ServiceUnavailable → INTERNAL_ERROR
	anything else                     → NETWORK_ERROR

A per-call timeout that expires while the caller's context is still live is
reported as CONNECTION_TIMEOUT so that it stays retryable.
*/
package s3
