// Package remote resolves abstract file references into concrete local
// files. Each URI scheme (file:, http:, https:, s3:, gs:) maps to exactly one
// Resolver strategy; a ResolverSet dispatches on the scheme prefix. Fetching
// strategies download to a temporary name and rename into place on success,
// so a failed transfer never leaves a partial file behind.
package remote
