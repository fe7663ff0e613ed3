package tools

import (
	"time"

	"ai-notetaking-agent/internal/entity"

	"github.com/google/uuid"
)

type PageView struct {
	Id        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type SectionView struct {
	Id     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	PageId uuid.UUID `json:"pageId"`
}

type NoteView struct {
	Id         uuid.UUID `json:"id"`
	Content    string    `json:"content"`
	SectionId  uuid.UUID `json:"sectionId"`
	Tags       []string  `json:"tags"`
	Completed  bool      `json:"completed"`
	Date       string    `json:"date,omitempty"`
	Similarity float64   `json:"similarity,omitempty"`
}

func toPageView(p *entity.Page) PageView {
	return PageView{Id: p.Id, Name: p.Name, CreatedAt: p.CreatedAt}
}

func toSectionView(s *entity.Section) SectionView {
	return SectionView{Id: s.Id, Name: s.Name, PageId: s.PageId}
}

func toNoteView(n *entity.Note) NoteView {
	v := NoteView{
		Id:        n.Id,
		Content:   n.Content,
		SectionId: n.SectionId,
		Tags:      n.Tags,
		Completed: n.Completed,
	}
	if v.Tags == nil {
		v.Tags = []string{}
	}
	if n.Date != nil {
		v.Date = n.Date.Format("2006-01-02")
	}
	return v
}
