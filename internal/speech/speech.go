// Package speech provides text-to-speech and speech-to-text backed by
// external programs.
package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"librarian/internal/domain"
)

// ErrNotConfigured is returned by Listen when no recognizer is set up.
var ErrNotConfigured = errors.New("speech input is not configured")

var (
	_ domain.Speaker  = (*NoOp)(nil)
	_ domain.Listener = (*NoOp)(nil)
	_ domain.Speaker  = (*CommandSpeaker)(nil)
	_ domain.Listener = (*CommandListener)(nil)
)

// NoOp is used when voice is disabled.
type NoOp struct {
	log *slog.Logger
}

func NewNoOp(log *slog.Logger) *NoOp {
	if log == nil {
		log = slog.Default()
	}
	return &NoOp{log: log}
}

func (n *NoOp) Speak(_ context.Context, text string) error {
	n.log.Debug("speech disabled, not speaking", "chars", len(text))
	return nil
}

func (n *NoOp) Listen(context.Context) (string, error) {
	return "", ErrNotConfigured
}

// CommandSpeaker pipes text into an external synthesizer such as
// `espeak -s 150`.
type CommandSpeaker struct {
	argv []string
}

func NewCommandSpeaker(argv []string) (*CommandSpeaker, error) {
	if len(argv) == 0 {
		return nil, errors.New("speech: empty tts command")
	}
	return &CommandSpeaker{argv: argv}, nil
}

func (s *CommandSpeaker) Speak(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	cmd := exec.CommandContext(ctx, s.argv[0], s.argv[1:]...)
	cmd.Stdin = strings.NewReader(text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("tts %s: %w: %s", s.argv[0], err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// CommandListener runs an external recognizer that records one utterance
// and prints its transcript on stdout, such as an offline Vosk script.
type CommandListener struct {
	argv []string
}

func NewCommandListener(argv []string) (*CommandListener, error) {
	if len(argv) == 0 {
		return nil, errors.New("speech: empty stt command")
	}
	return &CommandListener{argv: argv}, nil
}

func (l *CommandListener) Listen(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, l.argv[0], l.argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("stt %s: %w: %s", l.argv[0], err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}
