// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

import (
	"github.com/ManuGH/genplay/internal/hls"
	"github.com/ManuGH/genplay/internal/media"
)

// Controller is the segmented-streaming controller the engine drives.
// *hls.Controller satisfies it.
type Controller interface {
	Subscribe(fn func(hls.Event)) func()
	AttachMedia(m media.Media) error
	DetachMedia()
	LoadSource(url string)
	StartLoad()
	StopLoad()
	RecoverMediaError()
	Destroy()
}

// ControllerFactory constructs a fresh controller. It is the only way the
// engine obtains one.
type ControllerFactory func() Controller

// HLSFactory returns a factory building hls controllers.
func HLSFactory(cfg hls.Config, opts ...hls.Option) ControllerFactory {
	return func() Controller { return hls.New(cfg, opts...) }
}

var _ Controller = (*hls.Controller)(nil)
