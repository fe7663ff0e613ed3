package tools

// ToolName identifies every function the model may call.
type ToolName string

// Data tools, dispatched to the registry.
const (
	GetPages        ToolName = "get_pages"
	GetSections     ToolName = "get_sections"
	GetNotes        ToolName = "get_notes"
	SearchNotes     ToolName = "search_notes"
	GetNoteStats    ToolName = "get_note_stats"
	CreatePage      ToolName = "create_page"
	CreateSection   ToolName = "create_section"
	CreateNote      ToolName = "create_note"
	UpdateNote      ToolName = "update_note"
	DeleteNote      ToolName = "delete_note"
	DeletePage      ToolName = "delete_page"
	DeleteSection   ToolName = "delete_section"
	BulkUpdateNotes ToolName = "bulk_update_notes"
	BulkDeleteNotes ToolName = "bulk_delete_notes"
)

// Terminal tools end the reasoning loop.
const (
	RespondToUser    ToolName = "respond_to_user"
	AskClarification ToolName = "ask_clarification"
	ConfirmAction    ToolName = "confirm_action"
	ProposePlan      ToolName = "propose_plan"
	RevisePlanStep   ToolName = "revise_plan_step"
)

// Frontend actions are recorded for the UI and acknowledged to the model.
const (
	NavigateToPage    ToolName = "navigate_to_page"
	NavigateToSection ToolName = "navigate_to_section"
	ApplyFilter       ToolName = "apply_filter"
	SwitchView        ToolName = "switch_view"
)

type Class int

const (
	ClassUnknown Class = iota
	ClassData
	ClassTerminal
	ClassFrontend
)

var classes = map[ToolName]Class{
	GetPages:          ClassData,
	GetSections:       ClassData,
	GetNotes:          ClassData,
	SearchNotes:       ClassData,
	GetNoteStats:      ClassData,
	CreatePage:        ClassData,
	CreateSection:     ClassData,
	CreateNote:        ClassData,
	UpdateNote:        ClassData,
	DeleteNote:        ClassData,
	DeletePage:        ClassData,
	DeleteSection:     ClassData,
	BulkUpdateNotes:   ClassData,
	BulkDeleteNotes:   ClassData,
	RespondToUser:     ClassTerminal,
	AskClarification:  ClassTerminal,
	ConfirmAction:     ClassTerminal,
	ProposePlan:       ClassTerminal,
	RevisePlanStep:    ClassTerminal,
	NavigateToPage:    ClassFrontend,
	NavigateToSection: ClassFrontend,
	ApplyFilter:       ClassFrontend,
	SwitchView:        ClassFrontend,
}

// Classify maps a raw model-supplied name to its tool name and class.
func Classify(name string) (ToolName, Class) {
	n := ToolName(name)
	return n, classes[n]
}

func (n ToolName) IsTerminal() bool { return classes[n] == ClassTerminal }

func (n ToolName) IsFrontend() bool { return classes[n] == ClassFrontend }
