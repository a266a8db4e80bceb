// Package log captures protocol events for the LED and fieldbus sessions.
//
// It is separate from operational logging (slog): a capture is a complete,
// machine-readable trace of what crossed the websocket and how the client
// model reacted to it.
//
//	// console while developing
//	capture := log.NewSlogAdapter(slog.Default())
//
//	// binary file for mled-log
//	fl, _ := log.NewFileLogger("captures/session.mlog")
//
//	// queryable history
//	db, _ := log.NewSQLiteLogger("captures/history.db")
//
//	capture = log.NewMultiLogger(capture, fl, db)
//
// Events are recorded at three layers:
//   - Transport: raw websocket frames (FrameEvent) and control frames
//   - Wire: decoded commands and snapshots (MessageEvent)
//   - Model: sync state transitions of strips, zones and devices
//
// Capture files are a stream of CBOR-encoded Events (.mlog). The mled-log
// tool views, filters and summarizes them.
package log
