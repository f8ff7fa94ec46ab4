// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// SudoPrompt is the prompt drydock asks sudo to print, so the watcher
// does not depend on the host's locale or sudoers configuration.
const SudoPrompt = "[sudo] password: "

// promptPattern matches both the prompt drydock sets and sudo's
// default "[sudo] password for <user>:".
var promptPattern = regexp.MustCompile(`\[sudo\] password(?: for [^:\s]+)?:`)

// maxPromptTail bounds how much unmatched output the watcher keeps
// between chunks so a prompt split across reads is still found.
const maxPromptTail = 128

// WatchAction is what the consumer loop must do after a chunk.
type WatchAction int

const (
	// WatchContinue means no prompt was seen.
	WatchContinue WatchAction = iota
	// WatchInject means the credential must be written to stdin now.
	WatchInject
	// WatchFail means a prompt repeated after injection; the command
	// must be aborted with ErrSudoAuthFailed.
	WatchFail
)

// PromptWatcher scans live output for a password prompt and decides,
// exactly once, to inject the stored credential.
type PromptWatcher struct {
	tail     string
	injected bool
}

// Observe scans one chunk of decoded output.
func (w *PromptWatcher) Observe(text string) WatchAction {
	window := w.tail + ansi.Strip(text)
	location := promptPattern.FindStringIndex(window)
	if location == nil {
		if len(window) > maxPromptTail {
			window = window[len(window)-maxPromptTail:]
		}
		w.tail = window
		return WatchContinue
	}

	// Only text after the prompt can contain the next one.
	w.tail = window[location[1]:]
	if w.injected {
		return WatchFail
	}
	w.injected = true
	return WatchInject
}

// Injected reports whether the credential was sent.
func (w *PromptWatcher) Injected() bool { return w.injected }

// PromptScrubber removes password prompts and the credential from one
// output stream. Text that may be the start of either is held back
// until the next chunk settles it, so a prompt split across reads is
// removed whole.
type PromptScrubber struct {
	secret  string
	pending string
}

// NewPromptScrubber returns a scrubber that masks secret; an empty
// secret only removes prompts.
func NewPromptScrubber(secret string) *PromptScrubber {
	return &PromptScrubber{secret: secret}
}

// Write returns the part of pending output plus text that is safe to
// show.
func (s *PromptScrubber) Write(text string) string {
	text = s.scrub(s.pending + text)
	s.pending = ""
	if cut := s.partial(text); cut < len(text) {
		s.pending = text[cut:]
		text = text[:cut]
	}
	return text
}

// Flush releases held-back text at the end of the stream.
func (s *PromptScrubber) Flush() string {
	text := s.scrub(s.pending)
	s.pending = ""
	return text
}

func (s *PromptScrubber) scrub(text string) string {
	text = promptPattern.ReplaceAllString(text, "")
	if s.secret != "" {
		text = strings.ReplaceAll(text, s.secret, "********")
	}
	return text
}

// partial returns where a trailing incomplete prompt or credential
// starts, or len(text) when there is none.
func (s *PromptScrubber) partial(text string) int {
	for i := max(0, len(text)-maxPromptTail); i < len(text); i++ {
		tail := text[i:]
		if promptPrefix(tail) || (s.secret != "" && strings.HasPrefix(s.secret, tail)) {
			return i
		}
	}
	return len(text)
}

// promptPrefix reports whether more output could complete tail into a
// match of promptPattern.
func promptPrefix(tail string) bool {
	const head, user = "[sudo] password", " for "
	if len(tail) <= len(head) {
		return strings.HasPrefix(head, tail)
	}
	rest, ok := strings.CutPrefix(tail, head)
	if !ok {
		return false
	}
	if len(rest) <= len(user) {
		return strings.HasPrefix(user, rest)
	}
	name, ok := strings.CutPrefix(rest, user)
	return ok && !strings.ContainsAny(name, ": \t\r\n")
}
