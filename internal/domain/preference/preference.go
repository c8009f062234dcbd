// Package preference provides the persisted player preference record.
package preference

// RepeatMode selects the repeat behavior of the player.
type RepeatMode string

const (
	RepeatOff RepeatMode = "off"        // Stop at the end of the queue
	RepeatAll RepeatMode = "repeat-all" // Wrap around the playlist
	RepeatOne RepeatMode = "repeat-one" // Loop the current track
)

// Next cycles off -> repeat-all -> repeat-one -> off.
func (m RepeatMode) Next() RepeatMode {
	switch m {
	case RepeatOff:
		return RepeatAll
	case RepeatAll:
		return RepeatOne
	default:
		return RepeatOff
	}
}

// Valid reports whether the mode is one of the known values.
func (m RepeatMode) Valid() bool {
	switch m {
	case RepeatOff, RepeatAll, RepeatOne:
		return true
	default:
		return false
	}
}

// Preferences is the persisted player preference record.
type Preferences struct {
	Volume  float64    `json:"volume" validate:"gte=0,lte=1"`
	Muted   bool       `json:"muted"`
	Shuffle bool       `json:"shuffle"`
	Repeat  RepeatMode `json:"repeat"`
	Theme   string     `json:"theme,omitempty"`
}

// Default returns the documented preference defaults.
func Default() Preferences {
	return Preferences{
		Volume:  1,
		Muted:   false,
		Shuffle: false,
		Repeat:  RepeatOff,
		Theme:   "auto",
	}
}

// Normalize coerces invalid fields back to their defaults in place.
// Loading persisted preferences never fails; corrupt values reset.
func (p *Preferences) Normalize() {
	if p.Volume < 0 || p.Volume > 1 {
		p.Volume = 1
	}
	if !p.Repeat.Valid() {
		p.Repeat = RepeatOff
	}
	switch p.Theme {
	case "light", "dark", "auto":
	default:
		p.Theme = "auto"
	}
}
