package ui

import "github.com/bamsammich/salvage/internal/event"

// quietPresenter drains events and produces no output. The summary is
// still available for callers that want a final line.
type quietPresenter struct{}

func (*quietPresenter) Run(events <-chan event.Event) error {
	for range events { //nolint:revive // drain
	}
	return nil
}

func (*quietPresenter) Summary() string {
	return ""
}
