package hotmic

import "hotmic/internal/paramqueue"

// ParameterChange is the discriminated record enqueued from the UI thread
// to the audio thread: a channel id, a kind discriminator, and the
// fields meaningful for that kind. It is the root package's name for
// internal/paramqueue.Change — defined there so the MPSC queue has no
// dependency on this package.
type ParameterChange = paramqueue.Change

// ParameterChangeKind discriminates which fields of a ParameterChange are
// meaningful.
type ParameterChangeKind = paramqueue.Kind

// Parameter change kinds.
const (
	InputGainDb     = paramqueue.InputGainDb
	OutputGainDb    = paramqueue.OutputGainDb
	Mute            = paramqueue.Mute
	Solo            = paramqueue.Solo
	PluginBypass    = paramqueue.PluginBypass
	PluginParameter = paramqueue.PluginParameter
	PluginCommand   = paramqueue.PluginCommand
)

// Enqueue adds a parameter change to the queue the audio thread drains at
// the start of every callback. Safe to call from any UI goroutine. Returns
// false if the queue is full, in which case the change is discarded and the
// queue's overflow counter is incremented — the caller should surface this
// as a UI-visible warning; audio continues unaffected.
func (e *Engine) Enqueue(change ParameterChange) bool {
	e.drainRetired()
	return e.paramQueue.Enqueue(change)
}

// ParameterQueueDropped returns the number of parameter changes discarded
// due to queue overflow since engine construction.
func (e *Engine) ParameterQueueDropped() uint64 {
	return e.paramQueue.Dropped()
}

// applyParameterChange dispatches one drained change to its addressed
// channel or plugin instance. Runs on the audio thread. A change addressing
// a channel id no longer present, or a plugin instance id no longer present
// in that channel's current snapshot, is silently discarded — this path has
// no UI-visible return value.
func (e *Engine) applyParameterChange(snap *RoutingSnapshot, c ParameterChange) {
	ch := snap.Channel(c.ChannelID)
	if ch == nil {
		return
	}

	switch c.Kind {
	case InputGainDb:
		ch.SetInputGainDb(c.Value)
	case OutputGainDb:
		ch.SetOutputGainDb(c.Value)
	case Mute:
		ch.SetMute(c.Value >= 0.5)
	case Solo:
		ch.SetSolo(c.Value >= 0.5)
	case PluginBypass:
		ch.Chain.SetBypassed(c.PluginInstanceID, c.Value >= 0.5)
	case PluginParameter:
		if idx := ch.Chain.Load().FindByInstanceID(c.PluginInstanceID); idx >= 0 {
			ch.Chain.Load().Slot(idx).Plugin.SetParameter(c.ParamIndex, c.Value)
		}
	case PluginCommand:
		if idx := ch.Chain.Load().FindByInstanceID(c.PluginInstanceID); idx >= 0 {
			if handler, ok := ch.Chain.Load().Slot(idx).Plugin.(interface{ HandleCommand(string) }); ok {
				handler.HandleCommand(c.Command)
			}
		}
	}
}
