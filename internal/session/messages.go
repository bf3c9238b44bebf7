package session

import (
	"fmt"
	"time"
)

const (
	messageCallStartedFormat       = ":telephone_receiver: **Transcribing call** `%s`"
	messageTranscriptLineFormat    = "`%s` %s"
	messageCallTranscriptFormat    = ":page_facing_up: **Call transcript** `%s`"
	messageCallEndedNoSpeechFormat = ":mute: **Call ended without recognized speech** `%s`"

	unknownCallSID = "unknown call"
)

func callStartedMessage(callSID string) string {
	return fmt.Sprintf(messageCallStartedFormat, displayCallSID(callSID))
}

func transcriptLineMessage(elapsed time.Duration, text string) string {
	if elapsed < 0 {
		elapsed = 0
	}
	return fmt.Sprintf(messageTranscriptLineFormat, formatElapsedHMS(elapsed), text)
}

func callTranscriptTitle(callSID string) string {
	return fmt.Sprintf(messageCallTranscriptFormat, displayCallSID(callSID))
}

func callEndedWithoutSpeechMessage(callSID string) string {
	return fmt.Sprintf(messageCallEndedNoSpeechFormat, displayCallSID(callSID))
}

func displayCallSID(callSID string) string {
	if callSID == "" {
		return unknownCallSID
	}
	return callSID
}
