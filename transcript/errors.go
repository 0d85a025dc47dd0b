package transcript

import (
	"errors"
	"fmt"
)

// Kind classifies an acquisition failure.
type Kind int

const (
	KindPrecondition    Kind = iota + 1 // not a video-watch page
	KindPanelOpen                       // every opening strategy failed
	KindContentTimeout                  // segments container never appeared
	KindContentRace                     // container vanished between wait and scrape
	KindEmptyTranscript                 // container present, zero segments parsed
	KindPage                            // page interaction itself failed
)

func (k Kind) String() string {
	switch k {
	case KindPrecondition:
		return "precondition"
	case KindPanelOpen:
		return "panel_open"
	case KindContentTimeout:
		return "content_timeout"
	case KindContentRace:
		return "content_race"
	case KindEmptyTranscript:
		return "empty_transcript"
	case KindPage:
		return "page"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Fixed failure messages delivered to the popup.
const (
	MsgNotVideoPage   = "not a video page"
	MsgPanelOpen      = "could not open transcript panel via any method"
	MsgContentTimeout = "transcript segments not found; video may have no transcript"
	MsgContainerGone  = "transcript container not found"
	MsgNoSegments     = "no transcript segments found"
)

// Failure is the error variant of a Result. Message is the human-readable
// string sent over the channel.
type Failure struct {
	Kind    Kind
	Message string
	Cause   error
}

func (f *Failure) Error() string { return f.Message }

func (f *Failure) Unwrap() error { return f.Cause }

// NotVideoPage builds the precondition failure.
func NotVideoPage() *Failure {
	return &Failure{Kind: KindPrecondition, Message: MsgNotVideoPage}
}

// PanelOpenFailed builds the exhausted-chain failure.
func PanelOpenFailed() *Failure {
	return &Failure{Kind: KindPanelOpen, Message: MsgPanelOpen}
}

// ContentTimeout builds the readiness-wait timeout failure.
func ContentTimeout(cause error) *Failure {
	return &Failure{Kind: KindContentTimeout, Message: MsgContentTimeout, Cause: cause}
}

// ContainerGone builds the race failure.
func ContainerGone() *Failure {
	return &Failure{Kind: KindContentRace, Message: MsgContainerGone}
}

// NoSegments builds the empty-transcript failure.
func NoSegments() *Failure {
	return &Failure{Kind: KindEmptyTranscript, Message: MsgNoSegments}
}

// PageFailed wraps an unexpected DOM or browser error.
func PageFailed(cause error) *Failure {
	msg := "page interaction failed"
	if cause != nil {
		msg += ": " + cause.Error()
	}
	return &Failure{Kind: KindPage, Message: msg, Cause: cause}
}

// KindOf returns the failure kind carried by err, or 0.
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return 0
}
