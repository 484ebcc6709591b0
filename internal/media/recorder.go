package media

import (
	"context"

	"github.com/weiawesome/duwdu-messenger/internal/domain"
)

// Recorder captures audio from a microphone.
type Recorder interface {
	Start(ctx context.Context) (Recording, error)
}

// Recording is an audio capture in progress.
type Recording interface {
	// Stop ends the capture and returns the encoded clip.
	Stop() ([]byte, error)
	ContentType() string
}

// UnavailableRecorder is used when the process has no microphone. Voice
// clips then arrive fully recorded through AttachAudio.
type UnavailableRecorder struct{}

func (UnavailableRecorder) Start(context.Context) (Recording, error) {
	return nil, domain.ErrMediaCapability
}
