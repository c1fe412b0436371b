package mirror

import (
	"io"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Progress creates one Tracker per download.
type Progress interface {
	Track(name string, total int64) Tracker
}

// Tracker follows the bytes of a single download.
type Tracker interface {
	// Wrap returns a reader that reports bytes read from r.
	Wrap(r io.Reader) io.Reader
	// Done marks the download finished or failed.
	Done(ok bool)
}

// BarProgress renders one terminal progress bar per download.
type BarProgress struct {
	p *mpb.Progress
}

// NewBarProgress renders bars to w.
func NewBarProgress(w io.Writer) *BarProgress {
	return &BarProgress{
		p: mpb.New(
			mpb.WithOutput(w),
			mpb.WithWidth(40),
		),
	}
}

// Track adds a bar sized total bytes. A total of 0 gives an indeterminate bar.
func (b *BarProgress) Track(name string, total int64) Tracker {
	bar := b.p.AddBar(total,
		mpb.BarRemoveOnComplete(),
		mpb.PrependDecorators(
			decor.Name(name, decor.WCSyncSpaceR),
		),
		mpb.AppendDecorators(
			decor.CountersKibiByte("% .1f / % .1f"),
			decor.Name(" "),
			decor.AverageSpeed(decor.SizeB1024(0), "% .1f"),
		),
	)
	return &barTracker{bar: bar}
}

// Wait blocks until every bar has finished rendering.
func (b *BarProgress) Wait() {
	b.p.Wait()
}

type barTracker struct {
	bar *mpb.Bar
}

func (t *barTracker) Wrap(r io.Reader) io.Reader {
	return t.bar.ProxyReader(r)
}

func (t *barTracker) Done(ok bool) {
	if !ok {
		t.bar.Abort(true)
		return
	}
	// Completes bars whose size was unknown or misreported.
	t.bar.SetTotal(-1, true)
}

// NoProgress discards progress updates.
type NoProgress struct{}

// Track returns a tracker that does nothing.
func (NoProgress) Track(string, int64) Tracker { return noTracker{} }

type noTracker struct{}

func (noTracker) Wrap(r io.Reader) io.Reader { return r }
func (noTracker) Done(bool)                  {}
