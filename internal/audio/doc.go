// Package audio transcodes source media into the canonical recognition
// format (mono, 16kHz, 16-bit PCM WAV) using ffmpeg.
package audio
