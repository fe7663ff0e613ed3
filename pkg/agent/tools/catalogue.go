package tools

import (
	"encoding/json"

	"ai-notetaking-agent/pkg/llm"
)

const actionSchema = `{
  "type":"object",
  "properties":{
    "type":{"type":"string","enum":["create_page","create_section","create_note","delete_page","delete_section","delete_notes"]},
    "name":{"type":"string"},
    "pageId":{"type":"string","format":"uuid"},
    "pageName":{"type":"string"},
    "sectionId":{"type":"string","format":"uuid"},
    "sectionName":{"type":"string"},
    "content":{"type":"string"},
    "tags":{"type":"array","items":{"type":"string"}},
    "date":{"type":"string"},
    "filter":` + filterSchema + `
  },
  "required":["type"]
}`

const groupSchema = `{
  "type":"object",
  "properties":{
    "id":{"type":"string"},
    "title":{"type":"string"},
    "description":{"type":"string"},
    "actions":{"type":"array","items":` + actionSchema + `}
  },
  "required":["title","actions"]
}`

func terminalDefinitions() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		{
			Name:        string(RespondToUser),
			Description: "Reply to the user and end the turn.",
			Parameters: json.RawMessage(`{
  "type":"object",
  "properties":{"message":{"type":"string"}},
  "required":["message"]
}`),
		},
		{
			Name:        string(AskClarification),
			Description: "Ask the user a question when the request is ambiguous.",
			Parameters: json.RawMessage(`{
  "type":"object",
  "properties":{
    "question":{"type":"string"},
    "options":{"type":"array","items":{"type":"string"}}
  },
  "required":["question"]
}`),
		},
		{
			Name:        string(ConfirmAction),
			Description: "Ask the user to confirm a destructive or bulk change before running it.",
			Parameters: json.RawMessage(`{
  "type":"object",
  "properties":{
    "message":{"type":"string"},
    "confirmValue":{"type":"string","description":"what will be done once the user agrees"}
  },
  "required":["message","confirmValue"]
}`),
		},
		{
			Name:        string(ProposePlan),
			Description: "Propose a multi-step plan. Put work that depends on something created earlier into a later group.",
			Parameters: json.RawMessage(`{
  "type":"object",
  "properties":{
    "summary":{"type":"string"},
    "groups":{"type":"array","items":` + groupSchema + `}
  },
  "required":["summary","groups"]
}`),
		},
		{
			Name:        string(RevisePlanStep),
			Description: "Replace one group of the plan under review.",
			Parameters: json.RawMessage(`{
  "type":"object",
  "properties":{
    "stepIndex":{"type":"integer","minimum":0},
    "revisedGroup":` + groupSchema + `
  },
  "required":["stepIndex","revisedGroup"]
}`),
		},
	}
}

func frontendDefinitions() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		{
			Name:        string(NavigateToPage),
			Description: "Open a page in the UI.",
			Parameters:  json.RawMessage(schemaPageRef),
		},
		{
			Name:        string(NavigateToSection),
			Description: "Open a section in the UI.",
			Parameters:  json.RawMessage(schemaSectionRef),
		},
		{
			Name:        string(ApplyFilter),
			Description: "Filter the notes shown in the UI.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"filter":` + filterSchema + `}}`),
		},
		{
			Name:        string(SwitchView),
			Description: "Switch the UI view.",
			Parameters: json.RawMessage(`{
  "type":"object",
  "properties":{"view":{"type":"string","enum":["list","board","calendar"]}},
  "required":["view"]
}`),
		},
	}
}
