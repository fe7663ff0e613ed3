// Package assembler builds the per-turn retrieval context folded into the
// agent's system prompt. Every retrieval degrades to empty on failure.
package assembler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ai-notetaking-agent/internal/pkg/logger"
	"ai-notetaking-agent/pkg/agent/store"
	"ai-notetaking-agent/pkg/embedding"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	NoteTopK              int
	NoteThreshold         float64
	ConversationTopK      int
	ConversationThreshold float64
	ConversationChars     int
	EmbeddingTimeout      time.Duration
}

// Context is ephemeral; it lives for one turn.
type Context struct {
	RelevantNotes   []store.ScoredNote
	RelevantHistory []store.ScoredMessage
	Overview        *store.Overview

	conversationChars int
}

type Assembler struct {
	store    store.Store
	embedder embedding.EmbeddingProvider
	logger   logger.ILogger
	cfg      Config
}

func New(s store.Store, embedder embedding.EmbeddingProvider, log logger.ILogger, cfg Config) *Assembler {
	if cfg.NoteTopK <= 0 {
		cfg.NoteTopK = 5
	}
	if cfg.ConversationTopK <= 0 {
		cfg.ConversationTopK = 3
	}
	if cfg.ConversationChars <= 0 {
		cfg.ConversationChars = 300
	}
	if cfg.EmbeddingTimeout <= 0 {
		cfg.EmbeddingTimeout = 5 * time.Second
	}
	return &Assembler{store: s, embedder: embedder, logger: log, cfg: cfg}
}

// Assemble never fails: the overview runs alongside the embedding, and the two
// similarity searches fan out once the vector is ready. Each slice that errors
// is logged and left empty.
func (a *Assembler) Assemble(ctx context.Context, query string, userId uuid.UUID) *Context {
	out := &Context{conversationChars: a.cfg.ConversationChars}

	var g errgroup.Group

	g.Go(func() error {
		ov, err := store.BuildOverview(ctx, a.store, userId)
		if err != nil {
			a.degraded("overview", userId, err)
			return nil
		}
		out.Overview = ov
		return nil
	})

	g.Go(func() error {
		vector := a.embed(ctx, query, userId)
		if len(vector) == 0 {
			return nil
		}

		var searches errgroup.Group
		searches.Go(func() error {
			out.RelevantNotes = a.searchNotes(ctx, userId, vector)
			return nil
		})
		searches.Go(func() error {
			out.RelevantHistory = a.searchHistory(ctx, userId, vector)
			return nil
		})
		return searches.Wait()
	})

	_ = g.Wait()
	return out
}

func (a *Assembler) embed(ctx context.Context, query string, userId uuid.UUID) []float32 {
	if a.embedder == nil || strings.TrimSpace(query) == "" {
		return nil
	}
	embedCtx, cancel := context.WithTimeout(ctx, a.cfg.EmbeddingTimeout)
	defer cancel()
	resp, err := a.embedder.Generate(embedCtx, query, embedding.TaskRetrievalQuery)
	if err != nil {
		a.degraded("embedding", userId, err)
		return nil
	}
	return resp.Embedding.Values
}

func (a *Assembler) searchNotes(ctx context.Context, userId uuid.UUID, vector []float32) []store.ScoredNote {
	scope, err := store.DeriveScope(ctx, a.store, userId)
	if err != nil {
		a.degraded("notes", userId, err)
		return nil
	}
	sectionIds := scope.SectionIds()
	if len(sectionIds) == 0 {
		return nil
	}
	notes, err := a.store.SearchNotes(ctx, sectionIds, vector, a.cfg.NoteTopK, a.cfg.NoteThreshold)
	if err != nil {
		a.degraded("notes", userId, err)
		return nil
	}
	return notes
}

func (a *Assembler) searchHistory(ctx context.Context, userId uuid.UUID, vector []float32) []store.ScoredMessage {
	msgs, err := a.store.SearchMessages(ctx, userId, vector, a.cfg.ConversationTopK, a.cfg.ConversationThreshold)
	if err != nil {
		a.degraded("conversations", userId, err)
		return nil
	}
	return msgs
}

func (a *Assembler) degraded(slice string, userId uuid.UUID, err error) {
	a.logger.Warn("RAG", "Retrieval failed, continuing without it", map[string]interface{}{
		"slice":   slice,
		"user_id": userId.String(),
		"error":   err.Error(),
	})
}

// String renders the delimited block injected into the system prompt.
func (c *Context) String() string {
	var b strings.Builder

	b.WriteString("=== DATABASE OVERVIEW ===\n")
	if c.Overview == nil {
		b.WriteString("(unavailable)\n")
	} else if len(c.Overview.Pages) == 0 {
		b.WriteString("The user has no pages yet.\n")
	} else {
		ov := c.Overview
		fmt.Fprintf(&b, "Pages: %d | Sections: %d | Notes: %d (%d completed)\n",
			len(ov.Pages), ov.SectionCount(), ov.TotalNotes, ov.CompletedNotes)
		for _, p := range ov.Pages {
			fmt.Fprintf(&b, "- Page %q (id: %s)\n", p.Page.Name, p.Page.Id)
			for _, s := range p.Sections {
				fmt.Fprintf(&b, "  - Section %q (id: %s): %d notes, %d completed\n",
					s.Section.Name, s.Section.Id, s.Total, s.Completed)
			}
		}
		if len(ov.Tags) > 0 {
			fmt.Fprintf(&b, "Tags in use: %s\n", strings.Join(ov.Tags, ", "))
		}
	}

	b.WriteString("\n=== RELEVANT NOTES ===\n")
	if len(c.RelevantNotes) == 0 {
		b.WriteString("(none)\n")
	}
	for _, sn := range c.RelevantNotes {
		n := sn.Note
		where := n.SectionId.String()
		if c.Overview != nil {
			if name := c.Overview.SectionName(n.SectionId); name != "" {
				where = fmt.Sprintf("%q", name)
			}
		}
		status := "open"
		if n.Completed {
			status = "completed"
		}
		fmt.Fprintf(&b, "- [%.2f] note %s in section %s, %s", sn.Similarity, n.Id, where, status)
		if len(n.Tags) > 0 {
			fmt.Fprintf(&b, ", tags: %s", strings.Join(n.Tags, ", "))
		}
		fmt.Fprintf(&b, "\n  %s\n", n.Content)
	}

	b.WriteString("\n=== RELEVANT PAST CONVERSATIONS ===\n")
	if len(c.RelevantHistory) == 0 {
		b.WriteString("(none)\n")
	}
	for _, sm := range c.RelevantHistory {
		m := sm.Message
		fmt.Fprintf(&b, "- [%s, %s] %s\n", m.Role, m.CreatedAt.Format("2006-01-02"), truncate(m.Content, c.conversationChars))
	}

	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if n <= 0 || len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}
