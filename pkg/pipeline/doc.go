// Package pipeline manages the per-guild audio sessions of the radio bot.
//
// A Manager owns one Session per guild. Each session binds a voice
// connection, a frame player and at most one running transcoding process,
// and is driven by its own event loop goroutine. The loop is the only writer
// of the session's fields; it consumes
//
//   - commands from the Manager (start, stop, teardown)
//   - connection events (ready, signalling, connecting, disconnected, destroyed)
//   - player events (idle, playing, error)
//   - reconnect and disconnect-grace timer expirations
//
// # Lifecycle
//
//	store := pipeline.NewStore()
//	manager, err := pipeline.NewManager(pipeline.DefaultConfig(), store, deps, logger, metrics)
//	if err != nil {
//		return err
//	}
//
//	if _, err := manager.Join(ctx, guildID, channelID); err != nil {
//		return err // ErrConnectionTimeout or ErrConnectionError
//	}
//	if err := manager.StartStream(guildID, streamURL); err != nil {
//		manager.Cleanup(guildID)
//	}
//
// # Recovery
//
// When the player goes idle or errors while the session should be playing,
// the session waits the configured reconnect delay and restarts the same
// source URL. Restarts stop after MaxAttempts consecutive failures; the
// session then stays registered but silent until the next StartStream. A
// voice disconnect that is not followed by signalling, connecting or ready
// within the grace window, or a destroyed connection, removes the session.
//
// Player events that belong to a resource which has since been replaced or
// killed are dropped.
package pipeline
