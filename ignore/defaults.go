package ignore

// DefaultIgnorePatterns are matched against every path component.
// Shared drives collect OS metadata, editor swap files and office lock files that are never useful to compare.
var DefaultIgnorePatterns = []string{
	// Version control
	".git",
	".svn",
	".hg",

	// OS metadata
	".DS_Store",
	"._*",
	"Thumbs.db",
	"ehthumbs.db",
	"desktop.ini",
	"$RECYCLE.BIN",
	"System Volume Information",
	".Trashes",
	".fseventsd",
	".Spotlight-V100",

	// Office owner/lock files
	"~$*",
	".~lock.*#",

	// Editor and temporary files
	"*.swp",
	"*.swo",
	"*~",
	"*.tmp",
	"*.temp",
	"*.crdownload",
	"*.part",

	// Dependency and cache trees
	"node_modules",
	"__pycache__",
	".venv",
	".cache",

	// Our own artefacts
	"ferret.log",
	".ferret-cache.db*",
}
