// Package runlog keeps a local history of crawl run summaries.
//
// The history is a single JSON file holding the most recent runs, newest
// first. Every write goes to a temporary file that is synced and renamed over
// the previous one, so a crash mid-write leaves the old history intact.
//
// When no path is configured the file lives in the platform data directory:
//   - Linux: ~/.local/share/postcrawler/runs.json
//   - macOS: ~/Library/Application Support/postcrawler/runs.json
//   - Windows: %APPDATA%/postcrawler/runs.json
package runlog
