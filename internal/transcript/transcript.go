package transcript

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Utterance is a single speaker-attributed segment of a call.
type Utterance struct {
	Speaker   string  `json:"speaker"`
	Text      string  `json:"text"`
	Timestamp float64 `json:"timestamp"`
}

// Transcript is the ordered utterance sequence for one recorded call. It is
// immutable once persisted; analysis keys off ContentHash rather than CallID
// so a re-ingested transcript with different content is treated as new work.
type Transcript struct {
	CallID     string      `json:"call_id"`
	RepID      string      `json:"rep_id,omitempty"`
	Utterances []Utterance `json:"utterances"`
}

// Validate checks the invariants required before a transcript is stored.
func (t Transcript) Validate() error {
	if strings.TrimSpace(t.CallID) == "" {
		return errors.New("transcript: call id required")
	}
	if len(t.Utterances) == 0 {
		return errors.New("transcript: at least one utterance required")
	}
	for i, u := range t.Utterances {
		if strings.TrimSpace(u.Text) == "" {
			return fmt.Errorf("transcript: utterance %d has empty text", i)
		}
	}
	return nil
}

// ContentHash derives a stable digest over the utterance content. Speaker,
// text and timestamp all participate so any edit to the transcript produces a
// different evaluation cache key.
func (t Transcript) ContentHash() string {
	hasher := sha256.New()
	write := func(parts ...string) {
		for _, part := range parts {
			_, _ = hasher.Write([]byte(part))
			_, _ = hasher.Write([]byte{0})
		}
	}
	for _, u := range t.Utterances {
		write(u.Speaker, u.Text, strconv.FormatFloat(u.Timestamp, 'f', 3, 64))
	}
	return hex.EncodeToString(hasher.Sum(nil))
}

// Render formats the transcript for inclusion in an evaluation prompt, one
// line per utterance with the timestamp in seconds.
func (t Transcript) Render() string {
	var b strings.Builder
	for _, u := range t.Utterances {
		speaker := strings.TrimSpace(u.Speaker)
		if speaker == "" {
			speaker = "Unknown"
		}
		fmt.Fprintf(&b, "[%.1fs] %s: %s\n", u.Timestamp, speaker, strings.TrimSpace(u.Text))
	}
	return b.String()
}

// Duration reports the timestamp of the final utterance, used for logging.
func (t Transcript) Duration() float64 {
	if len(t.Utterances) == 0 {
		return 0
	}
	return t.Utterances[len(t.Utterances)-1].Timestamp
}
