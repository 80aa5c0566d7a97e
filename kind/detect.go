package kind

import (
	"path/filepath"
	"strings"
)

// ExtensionToKind maps file extensions (without dot) to document kind names.
var ExtensionToKind = map[string]string{
	// Plain text
	"txt": "Text", "text": "Text", "log": "Text", "nfo": "Text",
	"md": "Markdown", "markdown": "Markdown", "rst": "reStructuredText",
	"tex": "LaTeX",
	"csv": "CSV", "tsv": "CSV",
	"json": "JSON", "yaml": "YAML", "yml": "YAML", "toml": "TOML", "ini": "INI", "cfg": "INI",
	"xml": "XML", "html": "HTML", "htm": "HTML", "css": "CSS",
	"rtf": "Rich Text",
	"sql": "SQL",
	// Source code commonly found on shared drives
	"go": "Go", "py": "Python", "js": "JavaScript", "ts": "TypeScript",
	"java": "Java", "cs": "C#", "c": "C", "h": "C", "cpp": "C++",
	"sh": "Shell", "ps1": "PowerShell", "bat": "Batch", "cmd": "Batch",
	"vb": "Visual Basic", "vbs": "Visual Basic", "bas": "Visual Basic",
	// Office documents
	"doc": "Word", "docx": "Word", "docm": "Word", "dot": "Word", "dotx": "Word",
	"xls": "Excel", "xlsx": "Excel", "xlsm": "Excel", "xlsb": "Excel",
	"ppt": "PowerPoint", "pptx": "PowerPoint", "pptm": "PowerPoint",
	"odt": "OpenDocument", "ods": "OpenDocument", "odp": "OpenDocument",
	"pdf": "PDF",
	"msg": "Outlook", "eml": "Email",
	// Media and archives
	"png": "Image", "jpg": "Image", "jpeg": "Image", "gif": "Image", "bmp": "Image",
	"tif": "Image", "tiff": "Image", "webp": "Image", "heic": "Image", "svg": "Image",
	"mp3": "Audio", "wav": "Audio", "flac": "Audio", "m4a": "Audio",
	"mp4": "Video", "mov": "Video", "avi": "Video", "mkv": "Video", "wmv": "Video",
	"zip": "Archive", "7z": "Archive", "rar": "Archive", "tar": "Archive", "gz": "Archive",
	"exe": "Executable", "dll": "Executable", "msi": "Executable",
}

// structuredKinds need format-aware extraction before their text can be compared.
var structuredKinds = map[string]bool{
	"Word":         true,
	"Excel":        true,
	"PowerPoint":   true,
	"OpenDocument": true,
	"PDF":          true,
	"Outlook":      true,
}

// DetectKind returns the document kind for a path based on its extension.
// Returns "Unknown" if the extension is not recognized.
func DetectKind(filePath string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filePath), "."))
	if ext == "" {
		switch strings.ToLower(filepath.Base(filePath)) {
		case "readme", "license", "changelog", "authors":
			return "Text"
		case "makefile", "dockerfile":
			return "Build"
		}
		return "Unknown"
	}

	if k, ok := ExtensionToKind[ext]; ok {
		return k
	}
	return "Unknown"
}

// IsStructuredKind reports whether files of this kind are container formats.
func IsStructuredKind(k string) bool {
	return structuredKinds[k]
}
