package ivr

import "github.com/apanagidis/callback/internal/twiml"

// Options is the static menu configuration, loaded once at startup.
type Options struct {
	// Domain is the runtime domain webhook URLs are built against.
	Domain string
	// Voice is the TTS voice for every Say directive.
	Voice string
	// HoldMusicURL is the hold-music asset, absolute or domain-relative.
	HoldMusicURL string

	EWTEnabled           bool
	QueuePositionEnabled bool
	Wait                 WaitEstimator
	Position             PositionEstimator
}

func (o *Options) say(text string) twiml.Say {
	return twiml.Say{Voice: o.Voice, Text: text}
}

func (o *Options) holdMusic() twiml.Play {
	return twiml.Play{URL: ResolveAssetURL(o.Domain, o.HoldMusicURL)}
}
