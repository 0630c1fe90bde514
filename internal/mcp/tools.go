package mcp

import "github.com/mark3labs/mcp-go/mcp"

// sectionSchema describes a section as rendered on the page.
var sectionSchema = map[string]any{
	"page":     map[string]any{"type": "string", "description": "Title of the page the section is on"},
	"headline": map[string]any{"type": "string", "description": "Headline text as rendered, without markup"},
	"level":    map[string]any{"type": "integer", "description": "Heading level 1-6 (default: 2)"},
	"id":       map[string]any{"type": "integer", "description": "Zero-based index of the section among the page's sections"},
	"oldest_comment": map[string]any{
		"type":        "object",
		"description": "Oldest comment in the section, used to tell apart sections with equal headlines",
		"properties": map[string]any{
			"author": map[string]any{"type": "string"},
			"date":   map[string]any{"type": "string", "description": "RFC 3339"},
			"text":   map[string]any{"type": "string", "description": "Comment text without markup"},
		},
	},
	"preceding_headlines": map[string]any{
		"type":        "array",
		"items":       map[string]any{"type": "string"},
		"description": "Headlines of the preceding sections, nearest first",
	},
}

func withSection() mcp.ToolOption {
	return mcp.WithObject("section",
		mcp.Required(),
		mcp.Description("The section as rendered on the page"),
		mcp.Properties(sectionSchema),
	)
}

var locateToolDef = mcp.NewTool("section_locate",
	mcp.WithDescription("Find a rendered section in its page's wikitext. Returns offsets, score and matched signals."),
	withSection(),
	mcp.WithBoolean("include_code", mcp.Description("Include the section's wikitext in the result")),
	mcp.WithString("code", mcp.Description("Wikitext to search instead of fetching the page")),
)

var replyToolDef = mcp.NewTool("section_reply",
	mcp.WithDescription("Add a signed reply at the end of the section's first chunk and save the page."),
	withSection(),
	mcp.WithString("text", mcp.Required(), mcp.Description("Reply text, without signature")),
	mcp.WithString("indentation", mcp.Description("List markup of the comment replied to, e.g. \"::\". Empty replies to the section.")),
	mcp.WithString("summary", mcp.Description("Edit summary (default: \"reply\")")),
	mcp.WithBoolean("minor", mcp.Description("Mark the edit as minor")),
	mcp.WithBoolean("dry_run", mcp.Description("Return the new page code without saving")),
)

var addSubsectionToolDef = mcp.NewTool("section_add_subsection",
	mcp.WithDescription("Append a signed subsection at the end of the section and save the page."),
	withSection(),
	mcp.WithString("headline", mcp.Required(), mcp.Description("Headline of the new subsection")),
	mcp.WithString("text", mcp.Required(), mcp.Description("First comment of the subsection, without signature")),
	mcp.WithString("summary", mcp.Description("Edit summary (default: \"new subsection\")")),
	mcp.WithBoolean("minor", mcp.Description("Mark the edit as minor")),
	mcp.WithBoolean("dry_run", mcp.Description("Return the new page code without saving")),
)

var moveToolDef = mcp.NewTool("section_move",
	mcp.WithDescription("Move a section to another talk page: add it to the target, then remove it from the source. Failures are reported in the result and journaled."),
	withSection(),
	mcp.WithString("target_page", mcp.Required(), mcp.Description("Title of the talk page to move the section to")),
	mcp.WithString("summary_ending", mcp.Description("Text appended to both edit summaries")),
	mcp.WithBoolean("keep_link", mcp.Description("Leave a link to the new location on the source page (default: true)")),
)

var moveHistoryToolDef = mcp.NewTool("move_history",
	mcp.WithDescription("List journaled section moves, newest first, or fetch one by ID."),
	mcp.WithString("id", mcp.Description("Move ID")),
	mcp.WithNumber("limit", mcp.Description("Max items (default: 20, max: 100)")),
	mcp.WithNumber("offset", mcp.Description("Items to skip")),
)

var anchorGenerateToolDef = mcp.NewTool("anchor_generate",
	mcp.WithDescription("Build the anchor of a comment from its date and author."),
	mcp.WithString("date", mcp.Required(), mcp.Description("Comment date, RFC 3339")),
	mcp.WithString("author", mcp.Required(), mcp.Description("Comment author")),
)

var anchorParseToolDef = mcp.NewTool("anchor_parse",
	mcp.WithDescription("Extract the date and author from a comment anchor."),
	mcp.WithString("anchor", mcp.Required(), mcp.Description("Comment anchor, e.g. 202305011000_Alice")),
)

var timestampParseToolDef = mcp.NewTool("timestamp_parse",
	mcp.WithDescription("Find the last signature timestamp in a piece of wikitext and convert it to a date."),
	mcp.WithString("text", mcp.Required(), mcp.Description("Wikitext containing a signature")),
	mcp.WithNumber("offset_minutes", mcp.Description("Timezone offset to assume instead of the configured one")),
)

var visitsRecordToolDef = mcp.NewTool("visits_record",
	mcp.WithDescription("Record a visit to a page and report which comments are new and unseen."),
	mcp.WithString("page_id", mcp.Required(), mcp.Description("Numeric page ID")),
	mcp.WithArray("comments",
		mcp.Description("Comments on the page: {anchor, date, author, own}"),
		mcp.Items(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"anchor": map[string]any{"type": "string"},
				"date":   map[string]any{"type": "string"},
				"author": map[string]any{"type": "string"},
				"own":    map[string]any{"type": "boolean"},
			},
		}),
	),
	mcp.WithArray("unseen_anchors",
		mcp.Description("Anchors of comments that must stay unseen"),
		mcp.Items(map[string]any{"type": "string"}),
	),
	mcp.WithBoolean("sync", mcp.Description("Store all visits in the user's options afterwards")),
)

var visitsGetToolDef = mcp.NewTool("visits_get",
	mcp.WithDescription("Return the recorded visit times of a page."),
	mcp.WithString("page_id", mcp.Required(), mcp.Description("Numeric page ID")),
)

var visitsImportToolDef = mcp.NewTool("visits_import",
	mcp.WithDescription("Replace local visits with those stored in the user's options."),
)

var watchAddToolDef = mcp.NewTool("watch_add",
	mcp.WithDescription("Watch a section."),
	mcp.WithString("page_id", mcp.Required(), mcp.Description("Numeric page ID")),
	mcp.WithString("headline", mcp.Required(), mcp.Description("Section headline")),
	mcp.WithBoolean("sync", mcp.Description("Store watched sections in the user's options afterwards")),
)

var watchRemoveToolDef = mcp.NewTool("watch_remove",
	mcp.WithDescription("Stop watching a section."),
	mcp.WithString("page_id", mcp.Required(), mcp.Description("Numeric page ID")),
	mcp.WithString("headline", mcp.Required(), mcp.Description("Section headline")),
	mcp.WithBoolean("sync", mcp.Description("Store watched sections in the user's options afterwards")),
)

var watchListToolDef = mcp.NewTool("watch_list",
	mcp.WithDescription("List watched sections, by page ID."),
	mcp.WithString("page_id", mcp.Description("Only this page")),
)

var watchRenameToolDef = mcp.NewTool("watch_rename",
	mcp.WithDescription("Follow a watched section whose headline changed."),
	mcp.WithString("page_id", mcp.Required(), mcp.Description("Numeric page ID")),
	mcp.WithString("old_headline", mcp.Required()),
	mcp.WithString("new_headline", mcp.Required()),
	mcp.WithBoolean("old_still_present", mcp.Description("Another section still has the old headline")),
	mcp.WithBoolean("sync", mcp.Description("Store watched sections in the user's options afterwards")),
)

var watchImportToolDef = mcp.NewTool("watch_import",
	mcp.WithDescription("Merge the watched sections stored in the user's options into the local list."),
)

var usersSuggestToolDef = mcp.NewTool("users_suggest",
	mcp.WithDescription("Complete a user name prefix."),
	mcp.WithString("prefix", mcp.Required(), mcp.Description("Beginning of the user name")),
)
