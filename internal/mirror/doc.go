// Package mirror keeps a local directory tree in sync with remote Canvas files.
//
// It contains the pieces that touch the local filesystem:
//
//   - Selector decides which remote files need downloading
//   - Downloader writes a file atomically through a temporary file in the
//     destination directory
//   - Queue collects selected files while the crawl runs
//   - Layout creates directories and writes the JSON and HTML snapshots
//   - Matcher applies a gitignore-style ignore file
//
// All filesystem access goes through afero.Fs so that tests can run against
// an in-memory filesystem.
package mirror
