// Package hotmic implements a real-time audio processing engine core: a
// fixed, lock-free pipeline between an arbitrary number of input channels
// and a single process-wide output bus.
//
// A host owns the actual audio I/O (device streams, native callbacks) and
// drives the engine through three entry points: ProcessOutput on the audio
// thread's output callback, OnCaptureData on each device's capture thread,
// and OnStopped when the host's output stream stops. Every other method —
// AddChannel, InsertPlugin, SetInputDevice, Enqueue, and the rest of the
// graph-mutation surface — runs on a UI or control thread and publishes its
// changes to the audio thread through a lock-free snapshot rather than a
// shared mutex, so the audio thread itself never blocks.
//
// Plugins implement the small Plugin interface in internal/plugin and
// opt into additional roles (input staging, output sends, inter-channel
// routing dependencies, analysis production/consumption) by implementing
// the matching capability interface; the engine discovers these via type
// assertion rather than a registration step.
package hotmic
