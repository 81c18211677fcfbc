package cliconfig

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/bft-labs/loopleak/pkg/log"
)

// Logger returns a console logger at the named level writing to w (stderr
// when nil).
func Logger(w io.Writer, level string) (*log.ZerologAdapter, error) {
	if level == "" {
		level = "info"
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	return log.NewZerologAdapter(w, lvl), nil
}
