package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/iudanet/gophreview/internal/fsutil"
	"github.com/iudanet/gophreview/internal/models"
)

// Execute выполняет одну команду. quit == true завершает цикл.
func (c *Cli) Execute(ctx context.Context, line string) (quit bool, err error) {
	command, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)

	switch command {
	case "comment":
		return false, c.runComment(rest)
	case "reply":
		return false, c.runReply(rest)
	case "resolve":
		return false, c.runResolve(rest)
	case "delete":
		return false, c.runDelete(rest)
	case "list":
		return false, c.runList()
	case "save":
		return false, c.runSave(ctx, rest)
	case "who":
		return false, c.runWho()
	case "help":
		c.console.Printf("%s", usageText)
		return false, nil
	case "quit", "exit":
		return true, nil
	default:
		return false, fmt.Errorf("unknown command: %s. Type 'help' for commands", command)
	}
}

func (c *Cli) runComment(text string) error {
	if text == "" {
		return fmt.Errorf("missing text. Usage: comment <text>")
	}
	record := models.Annotation{
		ID:      uuid.NewString(),
		Type:    models.TypeComment,
		Content: text,
	}
	if err := c.session.AddBlock(record); err != nil {
		return fmt.Errorf("failed to add comment: %w", err)
	}
	c.console.Printf("Added comment %s\n", record.ID)
	return nil
}

func (c *Cli) runReply(args string) error {
	parentID, text, _ := strings.Cut(args, " ")
	text = strings.TrimSpace(text)
	if parentID == "" || text == "" {
		return fmt.Errorf("missing arguments. Usage: reply <id> <text>")
	}
	if _, ok := c.session.GetBlock(parentID); !ok {
		return fmt.Errorf("annotation %s not found", parentID)
	}
	record := models.Annotation{
		ID:       uuid.NewString(),
		Type:     models.TypeComment,
		Content:  text,
		ParentID: parentID,
	}
	if err := c.session.AddBlock(record); err != nil {
		return fmt.Errorf("failed to add reply: %w", err)
	}
	c.console.Printf("Added reply %s\n", record.ID)
	return nil
}

func (c *Cli) runResolve(id string) error {
	if id == "" {
		return fmt.Errorf("missing id. Usage: resolve <id>")
	}
	block, ok := c.session.GetBlock(id)
	if !ok {
		return fmt.Errorf("annotation %s not found", id)
	}
	if block.Status == models.StatusResolved {
		c.console.Printf("Annotation %s is already resolved\n", id)
		return nil
	}
	block.Status = models.StatusResolved
	if err := c.session.UpdateBlock(*block); err != nil {
		return fmt.Errorf("failed to resolve annotation: %w", err)
	}
	c.console.Printf("Resolved %s\n", id)
	return nil
}

func (c *Cli) runDelete(id string) error {
	if id == "" {
		return fmt.Errorf("missing id. Usage: delete <id>")
	}
	if err := c.session.DeleteBlock(id); err != nil {
		return fmt.Errorf("failed to delete annotation %s: %w", id, err)
	}
	c.console.Printf("Deleted %s\n", id)
	return nil
}

func (c *Cli) runList() error {
	blocks := c.session.GetBlocks()
	sort.Slice(blocks, func(i, j int) bool {
		if blocks[i].Timestamp != blocks[j].Timestamp {
			return blocks[i].Timestamp < blocks[j].Timestamp
		}
		return blocks[i].ID < blocks[j].ID
	})
	return render(c.console, listTemplate, blocks)
}

// runSave пишет документ с аннотациями в path или печатает его
func (c *Cli) runSave(ctx context.Context, path string) error {
	text, err := c.session.Materialize()
	if err != nil {
		return fmt.Errorf("failed to materialize document: %w", err)
	}
	if path == "" {
		c.console.Printf("%s", text)
		return nil
	}
	if err := fsutil.WriteFileAtomic(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	if err := c.session.SaveReplica(ctx); err != nil {
		c.console.Printf("Replica not cached: %v\n", err)
	}
	c.console.Printf("Saved %s\n", path)
	return nil
}

type whoView struct {
	SessionID string
	Master    string
	Document  string
	Self      string
	Role      models.Role
	Peers     []peerView
}

type peerView struct {
	ID      string
	Name    string
	Section string
	Typing  bool
}

func (c *Cli) runWho() error {
	info := c.session.Info()
	view := whoView{
		SessionID: info.SessionID,
		Master:    info.MasterName,
		Document:  info.DocumentPath,
		Self:      c.session.PeerID(),
		Role:      c.session.Role(),
	}
	for id, state := range c.session.Presence() {
		view.Peers = append(view.Peers, peerView{ID: id, Name: state.Name, Section: state.Section, Typing: state.Typing})
	}
	sort.Slice(view.Peers, func(i, j int) bool { return view.Peers[i].ID < view.Peers[j].ID })
	return render(c.console, whoTemplate, view)
}
