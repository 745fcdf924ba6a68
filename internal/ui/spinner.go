package ui

import (
	"context"

	"github.com/yarlson/pin"
)

// Spinner shows progress while a command waits on the server. A disabled
// spinner is a no-op, used when stdout is not a terminal or output is
// structured.
type Spinner struct {
	p      *pin.Pin
	cancel context.CancelFunc
}

// NewSpinner returns a spinner with message. enabled=false yields a no-op.
func NewSpinner(message string, enabled bool) *Spinner {
	if !enabled {
		return &Spinner{}
	}
	p := pin.New(message,
		pin.WithDoneSymbol('✔'),
		pin.WithDoneSymbolColor(pin.ColorGreen),
		pin.WithFailSymbol('✖'),
		pin.WithFailSymbolColor(pin.ColorRed),
	)
	return &Spinner{p: p}
}

func (s *Spinner) Start(ctx context.Context) {
	if s.p == nil {
		return
	}
	s.cancel = s.p.Start(ctx)
}

// Update replaces the message while spinning.
func (s *Spinner) Update(message string) {
	if s.p == nil {
		return
	}
	s.p.UpdateMessage(message)
}

func (s *Spinner) Stop(message string) {
	if s.p == nil {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.p.Stop(message)
}

func (s *Spinner) Fail(message string) {
	if s.p == nil {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.p.Fail(message)
}
