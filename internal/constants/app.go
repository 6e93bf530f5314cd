package constants

import (
	"time"
)

// Upload pre-flight limits
const (
	// MaxFilesPerBatch - maximum number of files accepted by a single batch upload
	MaxFilesPerBatch = 10

	// MaxGeneralFileSize - per-file ceiling for documents and other general uploads (50 MB)
	MaxGeneralFileSize = 50 * 1024 * 1024

	// MaxImageFileSize - per-file ceiling for images (10 MB)
	MaxImageFileSize = 10 * 1024 * 1024

	// MaxVideoFileSize - per-file ceiling for video (100 MB)
	MaxVideoFileSize = 100 * 1024 * 1024

	// MaxFilenameLength - longest accepted original filename, in bytes
	MaxFilenameLength = 255

	// CopyBufferSize - buffer used when streaming a file into a request body (256 KB)
	CopyBufferSize = 256 * 1024
)

// API client pacing
const (
	// DefaultAPIRate - sustained API calls per second before requests wait
	DefaultAPIRate = 10.0

	// DefaultAPIBurst - calls allowed back to back before pacing starts
	DefaultAPIBurst = 20
)

// Upload coordinator
const (
	// DefaultMaxConcurrent - default number of transfers allowed in the active state
	DefaultMaxConcurrent = 3

	// DefaultUploadTimeout - deadline for a single transfer once it becomes active (5 minutes)
	DefaultUploadTimeout = 5 * time.Minute

	// UploadPath - API path for multipart uploads
	UploadPath = "/api/upload"
)

// Response cache TTLs.
// Call sites pick one of these through cache.Policy instead of hard-coding durations.
const (
	// DefaultCacheTTL - fallback TTL for entries with no resource class (5 minutes)
	DefaultCacheTTL = 5 * time.Minute

	// ProfileCacheTTL - the user's own profile-like data (10 minutes)
	ProfileCacheTTL = 10 * time.Minute

	// ListCacheTTL - frequently changing list data such as blocks and products (2 minutes)
	ListCacheTTL = 2 * time.Minute

	// PurchasesCacheTTL - purchase listings (3 minutes)
	PurchasesCacheTTL = 3 * time.Minute

	// PublicCacheTTL - public, read-mostly pages (15 minutes)
	PublicCacheTTL = 15 * time.Minute

	// CacheSweepInterval - how often expired entries are proactively evicted (10 minutes)
	CacheSweepInterval = 10 * time.Minute
)

// Optimistic mutations
const (
	// DefaultDebounceWindow - quiet window for debounced field commits (500ms)
	DefaultDebounceWindow = 500 * time.Millisecond

	// TempIDPrefix - prefix of client-generated placeholder identifiers
	TempIDPrefix = "temp-"
)

// Event System
const (
	// EventBusDefaultBuffer - default buffer size for event channels (1000)
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - maximum buffer size for high-throughput scenarios (5000)
	EventBusMaxBuffer = 5000
)

// UI Updates
const (
	// ProgressUpdateInterval - interval for progress bar refreshes (250ms)
	ProgressUpdateInterval = 250 * time.Millisecond
)

// HTTP Client Timeouts
const (
	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake (30 seconds)
	HTTPTLSHandshakeTimeout = 30 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPDialTimeout - timeout for establishing connection (30 seconds)
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - keep-alive period for dialer (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second

	// HTTPAPITimeout - overall timeout for JSON API calls (60 seconds).
	// Uploads do not use it; they are bounded by the coordinator's per-task deadline.
	HTTPAPITimeout = 60 * time.Second
)
