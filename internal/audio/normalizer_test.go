package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"scribe/internal/logging"
	"scribe/internal/testsupport"
)

func newTestNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return NewNormalizer(cfg, logging.NewNop())
}

func setAudioHelper(t *testing.T, mode string, captured *[][]string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		if captured != nil {
			*captured = append(*captured, append([]string(nil), args...))
		}
		helperMode := mode
		// The availability probe must succeed for the transcode attempt to run.
		if len(args) == 1 && args[0] == "-version" {
			helperMode = "probe"
		}
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestAudioHelperProcess")
		cmd.Env = append(os.Environ(),
			"GO_WANT_HELPER_PROCESS=1",
			fmt.Sprintf("AUDIO_HELPER_MODE=%s", helperMode),
			fmt.Sprintf("AUDIO_HELPER_OUT=%s", args[len(args)-1]),
		)
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
}

func TestToCanonicalPCMSuccess(t *testing.T) {
	var captured [][]string
	setAudioHelper(t, "success", &captured)

	n := newTestNormalizer(t)
	src := filepath.Join(t.TempDir(), "clip.mp3")
	testsupport.WriteFile(t, src, 128)

	out, ok := n.ToCanonicalPCM(context.Background(), src)
	if !ok {
		t.Fatal("expected transcode to succeed")
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("expected transcoded file to exist: %v", err)
	}
	if !strings.HasSuffix(out, ".16k.wav") {
		t.Fatalf("unexpected output name %q", out)
	}

	if len(captured) != 2 {
		t.Fatalf("expected probe plus transcode invocations, got %d", len(captured))
	}
	transcodeArgs := captured[1]
	for _, want := range []string{"-ac", "-ar", "-acodec", "pcm_s16le", "-vn"} {
		if findArg(transcodeArgs, want) == -1 {
			t.Fatalf("expected %s in transcode args %v", want, transcodeArgs)
		}
	}
	if idx := findArg(transcodeArgs, "-ar"); transcodeArgs[idx+1] != "16000" {
		t.Fatalf("expected 16000 sample rate, got %q", transcodeArgs[idx+1])
	}
	if idx := findArg(transcodeArgs, "-ac"); transcodeArgs[idx+1] != "1" {
		t.Fatalf("expected mono downmix, got %q", transcodeArgs[idx+1])
	}
}

func TestToCanonicalPCMTranscodeFailure(t *testing.T) {
	setAudioHelper(t, "failure", nil)

	n := newTestNormalizer(t)
	if out, ok := n.ToCanonicalPCM(context.Background(), "/nonexistent/clip.mp3"); ok {
		t.Fatalf("expected ok=false on transcode failure, got %q", out)
	}
}

func TestToCanonicalPCMBinaryMissing(t *testing.T) {
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "/nonexistent/ffmpeg")
	}
	t.Cleanup(func() {
		commandContext = original
	})

	n := newTestNormalizer(t)
	if _, ok := n.ToCanonicalPCM(context.Background(), "clip.mp3"); ok {
		t.Fatal("expected ok=false when ffmpeg is unavailable")
	}
}

func TestToCanonicalPCMDisabled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Transcode.Enabled = false
	n := NewNormalizer(cfg, logging.NewNop())
	if _, ok := n.ToCanonicalPCM(context.Background(), "clip.mp3"); ok {
		t.Fatal("expected ok=false when transcoding is disabled")
	}
}

func TestAudioHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	switch os.Getenv("AUDIO_HELPER_MODE") {
	case "probe":
		os.Exit(0)
	case "success":
		if err := os.WriteFile(os.Getenv("AUDIO_HELPER_OUT"), []byte("RIFF"), 0o644); err != nil {
			os.Exit(1)
		}
		os.Exit(0)
	case "failure":
		fmt.Fprintln(os.Stderr, "conversion failed")
		os.Exit(1)
	default:
		os.Exit(0)
	}
}

func findArg(args []string, target string) int {
	for i, arg := range args {
		if arg == target {
			return i
		}
	}
	return -1
}
