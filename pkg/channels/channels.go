// Package channels holds small generic helpers for fanning values out over
// Go channels without letting a slow or closed receiver stall the sender.
package channels

import "errors"

var (
	// ErrChannelClosed means the receiver closed the channel.
	ErrChannelClosed = errors.New("channel closed")
	// ErrChannelTimeout means the receiver did not accept in time.
	ErrChannelTimeout = errors.New("send timeout")
	// ErrChannelFull means a non-blocking send found no room.
	ErrChannelFull = errors.New("channel full")
)
