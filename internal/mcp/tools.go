package mcp

import "github.com/mark3labs/mcp-go/mcp"

var createToolDef = mcp.NewTool("note_create",
	mcp.WithDescription("Create a note. The note is added at the top of the collection, newest first."),
	mcp.WithString("content",
		mcp.Required(),
		mcp.Description("Note text. Must contain non-whitespace characters."),
	),
)

var listToolDef = mcp.NewTool("note_list",
	mcp.WithDescription("List note summaries, newest first. Optionally filter by a case-insensitive substring."),
	mcp.WithString("query",
		mcp.Description("Substring to match against note content (case-insensitive)."),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum items to return (default 20, max 100)."),
	),
	mcp.WithNumber("offset",
		mcp.Description("Number of items to skip."),
	),
)

var fetchToolDef = mcp.NewTool("note_fetch",
	mcp.WithDescription("Fetch a single note with its full content."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Note ID."),
	),
)

var deleteToolDef = mcp.NewTool("note_delete",
	mcp.WithDescription("Delete a note. Deleting an unknown ID is a no-op and reports deleted=false."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Note ID."),
	),
)

var exportToolDef = mcp.NewTool("note_export",
	mcp.WithDescription("Export the whole collection as a JSON file. Defaults to ~/.murmur/exports/<key>-<timestamp>.json."),
	mcp.WithString("path",
		mcp.Description("Destination .json file, directly inside ~/.murmur/exports or an allowed_paths directory."),
	),
)

var importToolDef = mcp.NewTool("note_import",
	mcp.WithDescription("Import notes from a JSON export. Notes whose ID already exists are skipped."),
	mcp.WithString("path",
		mcp.Required(),
		mcp.Description("Source .json file, directly inside ~/.murmur/exports or an allowed_paths directory."),
	),
)
