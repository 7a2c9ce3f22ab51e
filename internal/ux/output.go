package ux

import (
	"fmt"
	"time"
)

// ANSI color helpers
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Dim    = "\033[2m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Cyan   = "\033[36m"
)

func timestamp() string {
	return time.Now().Format("15:04:05")
}

// StageHeader prints a timestamped stage header.
func StageHeader(ordinal, total int, name, description string) {
	fmt.Printf("\n%s[%s]%s %s══════════════════════════════════════%s\n",
		Dim, timestamp(), Reset, Cyan, Reset)
	desc := ""
	if description != "" {
		desc = fmt.Sprintf(": %s", description)
	}
	fmt.Printf("%s[%s]%s  %sStage %d/%d: %s%s%s\n",
		Dim, timestamp(), Reset, Bold, ordinal+1, total, name, desc, Reset)
	fmt.Printf("%s[%s]%s %s══════════════════════════════════════%s\n",
		Dim, timestamp(), Reset, Cyan, Reset)
}

// Assistant prints an assistant reply.
func Assistant(text string) {
	if text == "" {
		return
	}
	fmt.Printf("\n  %s◆%s %s\n", Cyan, Reset, text)
}

// Detour prints an edit-detour notice.
func Detour(target, returnStage string) {
	fmt.Printf("%s[%s]%s  %s↺ Editing %q (will return to %q)%s\n",
		Dim, timestamp(), Reset, Yellow, target, returnStage, Reset)
}

// Approved prints the terminal success message.
func Approved(id string) {
	fmt.Printf("\n%s[%s]%s  %s%s══ Plan %s approved ══%s\n\n",
		Dim, timestamp(), Reset, Bold, Green, id, Reset)
}

// Terminated prints a non-approval terminal message.
func Terminated(reason string) {
	fmt.Printf("\n%s[%s]%s  %s✗ Conversation ended: %s%s\n\n",
		Dim, timestamp(), Reset, Red, reason, Reset)
}

// Prompt prints the input prompt for the next user turn.
func Prompt(stageName string) {
	fmt.Printf("\n%s[%s]%s %s>%s ", Dim, stageName, Reset, Bold, Reset)
}
