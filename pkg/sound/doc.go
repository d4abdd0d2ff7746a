// ABOUTME: Sound package with pooled audio output sessions
// ABOUTME: Exposes Provider, Output and the Process contract sessions feed
// Package sound plays PCM through pooled native output processes.
//
// A Provider owns a pool of rendering processes. Each Output borrows one
// process while it is started and hands it back through a background drain
// once stopped, so a new session can reuse the same device and worker.
//
// Add applies backpressure: when more than one second of audio is queued it
// sleeps briefly before queueing more.
//
// Example:
//
//	provider, err := sound.NewNativeProvider(sound.NativeConfig{Backend: "oto"})
//	defer provider.Shutdown(ctx)
//
//	out := provider.CreateOutput(44100)
//	err = out.Start()
//	err = out.Add(ctx, samples, 0, samples.Frames())
//	err = out.Wait(ctx)
//	out.Stop()
package sound
