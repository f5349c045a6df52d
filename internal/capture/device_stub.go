//go:build noportaudio

package capture

import (
	"fmt"

	"github.com/rs/zerolog"
)

const deviceAvailable = false

// newDeviceSource returns an error in builds without PortAudio.
func newDeviceSource(cfg Config, logger zerolog.Logger) (Source, error) {
	return nil, fmt.Errorf("%w: built without portaudio", ErrUnsupportedBackend)
}
