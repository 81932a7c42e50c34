// Package rotation orders a media pool into the fixed-length on-screen
// rotation. Interleave is pure: any randomness in what the pool contains
// happens upstream, never here.
package rotation

import (
	"vjcap/internal/media"
)

// Interleave draws up to size items from the pool, round-robin across
// sources, and assigns transitions. With the secondary image provider
// available the pattern is gif, video, image; without it, gif, video. A
// source that runs out is skipped without leaving gaps, and the rotation
// shrinks when the pool cannot fill it.
//
// Video items cycle through the directional transitions in rotation order so
// consecutive video slots never reuse a direction; everything else fades.
func Interleave(pool media.Pool, size int, withSecondary bool) media.Rotation {
	if size <= 0 {
		return nil
	}

	bySource := pool.BySource()
	pattern := []media.Source{media.SourceGiphy, media.SourceVideo, media.SourceGoogle}
	if !withSecondary {
		pattern = []media.Source{media.SourceGiphy, media.SourceVideo}
	}

	queues := make(map[media.Source][]media.MediaItem, len(pattern))
	remaining := 0
	for _, src := range pattern {
		queues[src] = bySource[src]
		remaining += len(bySource[src])
	}

	out := make(media.Rotation, 0, min(size, remaining))
	for len(out) < size && remaining > 0 {
		for _, src := range pattern {
			if len(out) == size {
				break
			}
			q := queues[src]
			if len(q) == 0 {
				continue
			}
			out = append(out, q[0])
			queues[src] = q[1:]
			remaining--
		}
	}

	assignTransitions(out)
	return out
}

// assignTransitions stamps every item in place: videos walk the directional
// cycle in rotation order, all other media fades.
func assignTransitions(rot media.Rotation) {
	videoIdx := 0
	for i := range rot {
		if rot[i].Source == media.SourceVideo {
			rot[i].Transition = media.VideoTransitionCycle[videoIdx%len(media.VideoTransitionCycle)]
			videoIdx++
			continue
		}
		rot[i].Transition = media.TransitionFade
	}
}
