// Package audio drives the output clock from a sound card.
//
// Many laser projectors accept an ILDA signal generated by a DC-coupled
// stereo audio interface: the left channel steers X and the right channel
// steers Y. [Stream] is an io.Reader that pulls samples from the output
// path at its configured rate and resamples them, nearest neighbor, to the
// device rate as interleaved float32 frames. [Player] plays a Stream through
// oto, so the audio callback is the output clock.
//
// Builds with the headless tag replace Player with a stub that reports
// pkg.ErrNotSupported.
package audio
