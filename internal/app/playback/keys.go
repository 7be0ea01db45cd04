package playback

import "strings"

// Key is a keyboard command understood by the controller.
type Key string

const (
	KeySpace    Key = "space"
	KeyLeft     Key = "left"
	KeyRight    Key = "right"
	KeyUp       Key = "up"
	KeyDown     Key = "down"
	KeyNext     Key = "n"
	KeyPrevious Key = "p"
	KeyShuffle  Key = "s"
	KeyRepeat   Key = "r"
	KeyMute     Key = "m"
)

// ParseKey maps a key name as produced by terminals and browsers to a Key.
func ParseKey(name string) (Key, bool) {
	switch strings.ToLower(name) {
	case " ", "space", "spacebar":
		return KeySpace, true
	case "left", "arrowleft":
		return KeyLeft, true
	case "right", "arrowright":
		return KeyRight, true
	case "up", "arrowup":
		return KeyUp, true
	case "down", "arrowdown":
		return KeyDown, true
	case "n":
		return KeyNext, true
	case "p":
		return KeyPrevious, true
	case "s":
		return KeyShuffle, true
	case "r":
		return KeyRepeat, true
	case "m":
		return KeyMute, true
	default:
		return "", false
	}
}

// HandleKey runs the command bound to k. Keys typed while a text input has
// focus are ignored. Returns true if the key was handled.
func (c *Controller) HandleKey(k Key, inTextInput bool) bool {
	if inTextInput {
		return false
	}

	switch k {
	case KeySpace:
		c.TogglePlayPause()
	case KeyLeft:
		c.SeekBy(-c.config.SeekStep)
	case KeyRight:
		c.SeekBy(c.config.SeekStep)
	case KeyUp:
		c.NudgeVolume(c.config.VolumeStep)
	case KeyDown:
		c.NudgeVolume(-c.config.VolumeStep)
	case KeyNext:
		c.PlayNext()
	case KeyPrevious:
		c.PlayPrevious()
	case KeyShuffle:
		c.ToggleShuffle()
	case KeyRepeat:
		c.CycleRepeatMode()
	case KeyMute:
		c.ToggleMute()
	default:
		return false
	}
	return true
}
