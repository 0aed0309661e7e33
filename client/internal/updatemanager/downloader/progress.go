package downloader

import (
	"math"
	"time"
)

type sample struct {
	at    time.Time
	bytes int64
}

// progressTracker computes speed as a moving average over a sliding time window
type progressTracker struct {
	window  time.Duration
	now     func() time.Time
	samples []sample
}

func newProgressTracker(window time.Duration, now func() time.Time) *progressTracker {
	return &progressTracker{window: window, now: now}
}

func (p *progressTracker) update(downloaded, total int64) Progress {
	now := p.now()
	p.samples = append(p.samples, sample{at: now, bytes: downloaded})

	// keep one sample older than the window as the baseline
	cut := 0
	for cut < len(p.samples)-2 && now.Sub(p.samples[cut+1].at) >= p.window {
		cut++
	}
	p.samples = p.samples[cut:]

	progress := Progress{
		BytesDownloaded: downloaded,
		TotalBytes:      total,
	}

	if total > 0 {
		progress.Percent = math.Min(100, float64(downloaded)*100/float64(total))
	}

	first := p.samples[0]
	if elapsed := now.Sub(first.at).Seconds(); elapsed > 0 && downloaded > first.bytes {
		progress.SpeedBytesPerSec = float64(downloaded-first.bytes) / elapsed
	}

	if progress.SpeedBytesPerSec > 0 && total > downloaded {
		progress.ETASeconds = int64(math.Ceil(float64(total-downloaded) / progress.SpeedBytesPerSec))
	}

	return progress
}
