// Package watcher ingests documents dropped into an inbox directory.
//
// fsnotify events are coalesced per path by a Debouncer. Each new .pdf or
// .json file is handed to an ants worker pool, which waits for the file's
// size to settle and then ingests it. Modified files are not re-extracted.
package watcher
