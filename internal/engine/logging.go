package engine

import "github.com/rs/zerolog/log"

// The book, position, and wallet packages each declare their own
// minimal Logger interface so their tests can swap in a no-op without
// importing zerolog. These three adapters are where the engine wires
// the real global zerolog logger into each of them.

type zeroLogBookAdapter struct{}

func (zeroLogBookAdapter) Warn(msg string, fields map[string]any) {
	log.Warn().Fields(fields).Msg(msg)
}

type zeroLogPositionAdapter struct{}

func (zeroLogPositionAdapter) Info(msg string, fields map[string]any) {
	log.Info().Fields(fields).Msg(msg)
}

func (zeroLogPositionAdapter) Warn(msg string, fields map[string]any) {
	log.Warn().Fields(fields).Msg(msg)
}

type zeroLogWalletAdapter struct{}

func (zeroLogWalletAdapter) Info(msg string, fields map[string]any) {
	log.Info().Fields(fields).Msg(msg)
}
