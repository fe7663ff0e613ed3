package tools

const schemaEmpty = `{"type":"object","properties":{}}`

const filterSchema = `{
  "type":"object",
  "description":"Notes must match every field given. Tags match when the note carries all of them.",
  "properties":{
    "tags":{"type":"array","items":{"type":"string"}},
    "completed":{"type":"boolean"},
    "sectionId":{"type":"string","format":"uuid"},
    "noteIds":{"type":"array","items":{"type":"string","format":"uuid"}},
    "search":{"type":"string","description":"case-insensitive substring of the content"},
    "hasNoTags":{"type":"boolean"}
  }
}`

const schemaGetSections = `{
  "type":"object",
  "properties":{
    "pageId":{"type":"string","format":"uuid"},
    "pageName":{"type":"string"}
  }
}`

const schemaGetNotes = `{
  "type":"object",
  "properties":{
    "filter":` + filterSchema + `,
    "limit":{"type":"integer","minimum":1,"maximum":200}
  }
}`

const schemaSearchNotes = `{
  "type":"object",
  "properties":{
    "query":{"type":"string"},
    "limit":{"type":"integer","minimum":1,"maximum":50}
  },
  "required":["query"]
}`

const schemaCreatePage = `{
  "type":"object",
  "properties":{"name":{"type":"string"}},
  "required":["name"]
}`

const schemaCreateSection = `{
  "type":"object",
  "properties":{
    "name":{"type":"string"},
    "pageId":{"type":"string","format":"uuid"},
    "pageName":{"type":"string"}
  },
  "required":["name"]
}`

const schemaCreateNote = `{
  "type":"object",
  "properties":{
    "content":{"type":"string"},
    "sectionId":{"type":"string","format":"uuid"},
    "sectionName":{"type":"string"},
    "pageName":{"type":"string","description":"narrows sectionName to one page"},
    "tags":{"type":"array","items":{"type":"string"}},
    "date":{"type":"string","description":"YYYY-MM-DD"}
  },
  "required":["content"]
}`

const schemaUpdateNote = `{
  "type":"object",
  "properties":{
    "noteId":{"type":"string","format":"uuid"},
    "content":{"type":"string"},
    "tags":{"type":"array","items":{"type":"string"},"description":"replaces all tags"},
    "completed":{"type":"boolean"},
    "date":{"type":"string","description":"YYYY-MM-DD, empty string clears"}
  },
  "required":["noteId"]
}`

const schemaNoteId = `{
  "type":"object",
  "properties":{"noteId":{"type":"string","format":"uuid"}},
  "required":["noteId"]
}`

const schemaPageRef = `{
  "type":"object",
  "properties":{
    "pageId":{"type":"string","format":"uuid"},
    "pageName":{"type":"string"}
  }
}`

const schemaSectionRef = `{
  "type":"object",
  "properties":{
    "sectionId":{"type":"string","format":"uuid"},
    "sectionName":{"type":"string"},
    "pageName":{"type":"string"}
  }
}`

const schemaBulkUpdate = `{
  "type":"object",
  "properties":{
    "filter":` + filterSchema + `,
    "operation":{"type":"string","enum":["set_completion","set_tags","add_tags","remove_tags","move_to_section"]},
    "completed":{"type":"boolean"},
    "tags":{"type":"array","items":{"type":"string"}},
    "targetSectionId":{"type":"string","format":"uuid"}
  },
  "required":["filter","operation"]
}`

const schemaBulkDelete = `{
  "type":"object",
  "properties":{"filter":` + filterSchema + `},
  "required":["filter"]
}`
