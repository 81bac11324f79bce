package cli

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/iudanet/gophreview/internal/client/iocli"
	"github.com/iudanet/gophreview/internal/client/session"
)

const usageText = `
Commands:
  comment <text>          Add a comment to the document
  reply <id> <text>       Reply to an annotation
  resolve <id>            Mark an annotation as resolved
  delete <id>             Delete an annotation
  list                    Show annotations
  save [path]             Write the document with annotations (stdout without path)
  who                     Show session and connected peers
  quit                    Leave the session
`

const listTemplate = `
=== Annotations ===
{{- if eq (len .) 0 }}
No annotations yet. Use 'comment <text>' to add one.
{{- else }}
{{- range . }}
- {{ .ID }} [{{ .Type }}, {{ .Status }}]{{ if .Author }} by {{ .Author }}{{ end }}
{{- if .ParentID }}
  reply to: {{ .ParentID }}
{{- end }}
  {{ .Content }}
{{- end }}
{{- end }}
`

const whoTemplate = `
Session: {{ .SessionID }}
Master:  {{ .Master }}
{{- if .Document }}
Document: {{ .Document }}
{{- end }}
You:     {{ .Self }} ({{ .Role }})
{{- if .Peers }}
Peers:
{{- range .Peers }}
  - {{ .Name }} ({{ .ID }}){{ if .Section }} at {{ .Section }}{{ end }}{{ if .Typing }}, typing{{ end }}
{{- end }}
{{- else }}
No other peers.
{{- end }}
`

func render(console iocli.IO, text string, data any) error {
	tmpl, err := template.New("cli").Parse(text)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return fmt.Errorf("failed to render: %w", err)
	}
	console.Println(sb.String())
	return nil
}

// formatEvent возвращает строку для события или "", если событие не печатается
func formatEvent(ev session.Event) string {
	switch ev.Type {
	case session.EventConnected:
		return fmt.Sprintf("* connected as %s (%s)", ev.PeerID, ev.Role)
	case session.EventDisconnected:
		return fmt.Sprintf("* disconnected (code %d)", ev.Code)
	case session.EventReconnecting:
		return fmt.Sprintf("* reconnecting in %s (attempt %d)", ev.Delay.Round(time.Millisecond), ev.Attempt)
	case session.EventReconnectFailed:
		return fmt.Sprintf("* reconnect failed: %v", ev.Err)
	case session.EventSessionEnded:
		return "* session ended by master"
	case session.EventSynced:
		return "* synced"
	case session.EventBlockAdded, session.EventBlockUpdated:
		if ev.Origin != session.OriginMaster || ev.Block == nil {
			return ""
		}
		verb := "added"
		if ev.Type == session.EventBlockUpdated {
			verb = "updated"
		}
		return fmt.Sprintf("* %s %s %s: %s", ev.Block.Author, verb, ev.AnnotationID, ev.Block.Content)
	case session.EventBlockDeleted:
		if ev.Origin != session.OriginMaster {
			return ""
		}
		return fmt.Sprintf("* deleted %s", ev.AnnotationID)
	case session.EventRejected:
		if ev.AnnotationID == "" {
			return fmt.Sprintf("! rejected: %s", ev.Reason)
		}
		return fmt.Sprintf("! %s rejected: %s", ev.AnnotationID, ev.Reason)
	case session.EventRoleChanged:
		return fmt.Sprintf("* %s is now %s", ev.PeerID, ev.Role)
	case session.EventPeerJoined:
		return fmt.Sprintf("* %s joined", ev.Name)
	case session.EventPeerLeft:
		return fmt.Sprintf("* %s left", ev.Name)
	case session.EventDocContent:
		return fmt.Sprintf("* document %s updated", ev.Path)
	case session.EventError:
		return fmt.Sprintf("! %v", ev.Err)
	default:
		return ""
	}
}
