package playback

import "github.com/osa030/19player/internal/domain/track"

// View is the snapshot the UI layer renders.
type View struct {
	State           State        `json:"state"`
	ControlsEnabled bool         `json:"controls_enabled"`
	Track           *track.Track `json:"-"`
	QueueIndex      int          `json:"queue_index"`
	QueueLen        int          `json:"queue_len"`
	Playing         bool         `json:"playing"`
	Elapsed         string       `json:"elapsed"`
	Total           string       `json:"total"`
	Progress        float64      `json:"progress"`
	Shuffle         bool         `json:"shuffle"`
	Repeat          RepeatMode   `json:"repeat"`
	RepeatIcon      string       `json:"repeat_icon"`
	RepeatLabel     string       `json:"repeat_label"`
	Volume          float64      `json:"volume"`
	VolumeTier      VolumeTier   `json:"volume_tier"`
	VolumeIcon      string       `json:"volume_icon"`
}

// buildViewLocked must be called with c.mu held.
func (c *Controller) buildViewLocked() View {
	volume := c.out.Volume()
	tier := TierFor(volume)

	v := View{
		State:           c.state,
		ControlsEnabled: c.state != StateIdle,
		QueueIndex:      c.queue.CurrentIndex,
		QueueLen:        c.queue.Len(),
		Playing:         c.playing,
		Elapsed:         "0:00",
		Total:           "0:00",
		Shuffle:         c.shuffle,
		Repeat:          c.repeat,
		RepeatIcon:      c.repeat.Icon(),
		RepeatLabel:     c.repeat.Label(),
		Volume:          volume,
		VolumeTier:      tier,
		VolumeIcon:      tier.Icon(),
	}

	if cur := c.queue.Current(); cur != nil {
		t := *cur
		v.Track = &t

		pos := c.out.Position()
		total := c.out.Duration()
		if total <= 0 {
			total = t.Duration
		}
		v.Elapsed = FormatDuration(pos)
		v.Total = FormatDuration(total)
		v.Progress = progress(pos, total)
	}
	return v
}
