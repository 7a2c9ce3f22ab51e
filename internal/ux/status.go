package ux

import (
	"fmt"
	"sort"

	"github.com/aldenmarsh/planforge/internal/plan"
	"github.com/aldenmarsh/planforge/internal/stage"
)

// RenderStatus prints the full status display for a plan document.
func RenderStatus(reg *stage.Registry, doc *plan.Document) {
	fmt.Printf("%sPlan:%s    %s\n", Bold, Reset, doc.ID)
	if doc.Query != "" {
		fmt.Printf("%sQuery:%s   %s\n", Bold, Reset, doc.Query)
	}
	if doc.Approved {
		fmt.Printf("%sState:%s   %s%sapproved%s\n", Bold, Reset, Green, Bold, Reset)
	} else {
		fmt.Printf("%sState:%s   %d/%d (%s)\n",
			Bold, Reset, reg.Ordinal(doc.CurrentStage)+1, reg.Len(), doc.CurrentStage)
	}
	if doc.ReturnStage != "" {
		fmt.Printf("%sDetour:%s  will return to %s\n", Bold, Reset, doc.ReturnStage)
	}

	fmt.Printf("\n%sStages:%s\n", Bold, Reset)
	for i, name := range reg.Names() {
		marker := "  "
		if name == doc.CurrentStage && !doc.Approved {
			marker = fmt.Sprintf("%s→%s ", Yellow, Reset)
		}
		status := fmt.Sprintf("%s(pending)%s", Dim, Reset)
		if doc.IsCompleted(name) {
			status = fmt.Sprintf("%sdone%s", Green, Reset)
		}
		fmt.Printf("  %s%s%d%s  %-24s %s\n", marker, Dim, i+1, Reset, name, status)
	}

	fmt.Printf("\n%sContent:%s\n", Bold, Reset)
	printed := false
	for _, name := range reg.Names() {
		fields := doc.Stages[name]
		if len(fields) == 0 {
			continue
		}
		printed = true
		fmt.Printf("  %s%s%s\n", Bold, name, Reset)
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("    %-22s %v\n", k, fields[k])
		}
	}
	if !printed {
		fmt.Printf("  %s(none)%s\n", Dim, Reset)
	}

	if len(doc.Errors) > 0 {
		fmt.Printf("\n%sErrors:%s\n", Bold, Reset)
		for _, e := range doc.Errors {
			fmt.Printf("  %s[%s]%s %s: %s\n", Dim, e.Timestamp.Format("15:04:05"), Reset, e.Stage, e.Message)
		}
	}
}

// RenderTranscript prints the conversation log.
func RenderTranscript(doc *plan.Document) {
	if len(doc.Turns) == 0 {
		fmt.Printf("%s(no conversation yet)%s\n", Dim, Reset)
		return
	}
	for _, t := range doc.Turns {
		color := Reset
		switch t.Role {
		case plan.RoleUser:
			color = Bold
		case plan.RoleAssistant:
			color = Cyan
		case plan.RoleSystem:
			color = Dim
		}
		fmt.Printf("%s[%s]%s %s%-9s%s %s\n",
			Dim, t.Timestamp.Format("15:04:05"), Reset, color, t.Role, Reset, t.Text)
	}
}
