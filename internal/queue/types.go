package queue

import (
	"time"

	"github.com/cockroachdb/errors"
)

type Kind int

const (
	KindPlatformVideo Kind = iota
	KindLiveChannel
	KindLocal
	KindGenericURL
)

func (k Kind) String() string {
	switch k {
	case KindPlatformVideo:
		return "platform-video"
	case KindLiveChannel:
		return "platform-live-channel"
	case KindLocal:
		return "local"
	case KindGenericURL:
		return "generic-url"
	default:
		return "unknown"
	}
}

// Item is one request to play something. Title equals OriginalInput until
// the item is resolved at play time.
type Item struct {
	ID            string
	OriginalInput string
	Title         string
	Kind          Kind
	IsLive        bool
	RequestedBy   string
	AddedAt       time.Time
	Resolved      bool
}

type Status struct {
	Items        []Item
	CurrentIndex int
	IsPlaying    bool
}

var ErrOutOfRange = errors.New("position out of range")
