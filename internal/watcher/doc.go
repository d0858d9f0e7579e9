// Package watcher converts images as they land in a directory.
//
// The Watcher subscribes to fsnotify events for one directory (sub-directories
// are not followed). Create and write events for accepted files are debounced
// per path, so an image copied in several chunks is handled once, after the
// writes settle. Handle calls are serialised on a single goroutine.
//
// The daemon helpers run the same watcher in a detached `ngic watch
// --daemon-child` process whose PID lives in a PID file; StopDaemon sends it
// SIGTERM and the child deletes the file as it exits.
//
//	w, err := watcher.New(watcher.Options{
//		Dir:    "incoming",
//		Accept: converter.IsSupportedInput,
//		Handle: func(path string) { convert(path) },
//	})
//	if err != nil {
//		return err
//	}
//	return w.Run(ctx)
package watcher
