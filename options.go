package dataflow

// schedulerOption implements every component's *Option interface
// (SAVOption, ChannelOption, SelectOption), following the teacher's
// LoopOption pattern of a small unexported struct wrapping configuration,
// generalized here to apply across every component that accepts a
// [Scheduler] rather than duplicating WithScheduler per component.
type schedulerOption struct{ s Scheduler }

func (o schedulerOption) applySAV(c *savConfig) { c.scheduler = o.s }

func (o schedulerOption) applyChannel(c *channelConfig) { c.scheduler = o.s }

func (o schedulerOption) applySelect(c *selectConfig) { c.scheduler = o.s }

// WithScheduler overrides the [Scheduler] a SAV/PTP/Broadcast/Select uses to
// run handlers and select notifications. Every component in this package
// defaults to a shared [GoroutineScheduler] when none is supplied.
func WithScheduler(s Scheduler) interface {
	SAVOption
	ChannelOption
	SelectOption
} {
	return schedulerOption{s}
}
