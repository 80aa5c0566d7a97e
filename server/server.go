package server

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lexandro/ferret/tools"
)

// Version is reported to MCP clients.
const Version = "0.3.0"

// Handlers bundles the tool handlers registered on the server.
type Handlers struct {
	Analyze    *tools.AnalyzeHandler
	Duplicates *tools.DuplicatesHandler
	Similar    *tools.SimilarHandler
	Files      *tools.FilesHandler
	Search     *tools.SearchHandler
	Status     *tools.StatusHandler
}

// Setup creates the MCP server and registers every ferret tool.
func Setup(h Handlers) *mcp.Server {
	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "ferret",
			Version: Version,
		},
		&mcp.ServerOptions{
			Instructions: `This server finds redundant files in a directory tree: files with related names, byte-identical copies, and near-duplicate text.

Workflow:
- Call ferret_analyze once to run the analysis (the server may already have run one at startup).
- Use ferret_duplicates and ferret_similar to inspect the latest run, or pass runId for an older one.
- Use ferret_files to browse the inventory (kind, name group, duplicate flag) and ferret_search for full-text search over analyzed text files.
- ferret_status shows what has been analyzed so far.`,
		},
	)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name: "ferret_analyze",
		Description: `Analyze the served directory (or a subdirectory) for redundant files.

Groups files by fuzzy-matched names, hashes group members to find exact duplicates, and scores textual similarity between files. Returns a report and a run ID. Formats: text (default), markdown, json.`,
	}, h.Analyze.Handle)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "ferret_duplicates",
		Description: "List byte-identical files of a run, grouped by name cluster. The first file of each set is the original; the rest are redundant copies.",
	}, h.Duplicates.Handle)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "ferret_similar",
		Description: "List near-duplicate file pairs of a run, highest alignment score first. Use minScore (0-1) to hide weaker matches.",
	}, h.Similar.Handle)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name: "ferret_files",
		Description: `Browse the inventory of the latest run.

Filters (all optional):
  - pattern: glob on relative paths, e.g. "**/*.docx" or "finance/**"
  - kind: e.g. Word, Excel, PDF, Text
  - group: canonical name of a name group
  - duplicatesOnly: only redundant copies`,
	}, h.Files.Handle)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name: "ferret_search",
		Description: `Full-text search over the text files loaded by the latest run.

Query formats:
  - Plain text: word-level matching (e.g., "invoice")
  - "quoted text": exact phrase matching
  - /regex/: regular expression matching

Filtering:
  - filePath: exact relative path to search in a single file. Overrides fileGlob.
  - fileGlob: glob pattern to filter files (e.g., "**/*.txt").`,
	}, h.Search.Handle)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "ferret_status",
		Description: "Show server status: root, uptime, inventory size, memory usage, and a summary of the latest run.",
	}, h.Status.Handle)

	return mcpServer
}
