package leap

import (
	"os"

	"github.com/rs/zerolog/log"
)

// stdioPipeSize is the capacity requested for the stdin/stdout pipes when
// the platform lets us grow them. Large UI snapshots arrive as single
// frames; a bigger pipe keeps the viewer from stalling mid-frame.
const stdioPipeSize = 1_000_000

// ConnectStdio builds a client over this process's stdin/stdout, the
// transport a viewer gives a launched LEAP script, and completes the
// handshake.
func ConnectStdio() (*Client, error) {
	if err := tuneStdioPipes(); err != nil {
		log.Debug().Err(err).Msg("leap: could not resize stdio pipes")
	}
	c := NewClient(NewProtocol(os.Stdin, os.Stdout))
	if err := c.Connect(); err != nil {
		return nil, err
	}
	return c, nil
}
