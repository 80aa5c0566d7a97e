package register

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Scope selects which MCP client config file is written.
type Scope string

const (
	ScopeProject Scope = "project" // <directory>/.mcp.json
	ScopeUser    Scope = "user"    // ~/.claude.json
)

// ParseScope validates a scope name.
func ParseScope(name string) (Scope, error) {
	switch Scope(name) {
	case ScopeProject, ScopeUser:
		return Scope(name), nil
	}
	return "", fmt.Errorf("unknown scope %q (must be \"project\" or \"user\")", name)
}

// Options describes one registration.
type Options struct {
	ServerName string
	Scope      Scope
	// Directory is the root the server analyzes. For project scope the
	// config file is written there too. Empty means the working directory.
	Directory string
	// ServerArgs are extra flags passed to "serve".
	ServerArgs []string
	// BinaryPath overrides the detected executable.
	BinaryPath string
}

type mcpServerEntry struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// Register adds or replaces the server entry and returns the config file written.
func Register(opts Options) (string, error) {
	directory := opts.Directory
	if directory == "" {
		directory = "."
	}
	absDir, err := filepath.Abs(directory)
	if err != nil {
		return "", fmt.Errorf("resolving directory %s: %w", directory, err)
	}

	binaryPath := opts.BinaryPath
	if binaryPath == "" {
		if binaryPath, err = detectBinaryPath(); err != nil {
			return "", err
		}
	}
	serverName := opts.ServerName
	if serverName == "" {
		serverName = DeriveServerName(binaryPath)
	}

	configPath, err := resolveConfigPath(opts.Scope, absDir)
	if err != nil {
		return "", err
	}

	serveArgs := append([]string{"serve"}, opts.ServerArgs...)
	if opts.Scope == ScopeProject || opts.Directory != "" {
		serveArgs = append(serveArgs, absDir)
	}
	if err := writeConfig(configPath, serverName, buildEntry(binaryPath, serveArgs)); err != nil {
		return "", err
	}
	return configPath, nil
}

// DeriveServerName extracts a server name from a binary path by stripping .exe and -mcp suffixes.
func DeriveServerName(binaryPath string) string {
	name := filepath.Base(binaryPath)
	name = strings.TrimSuffix(name, ".exe")
	name = strings.TrimSuffix(name, "-mcp")
	return name
}

func detectBinaryPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("getting executable path: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("resolving symlinks for %s: %w", exe, err)
	}
	return resolved, nil
}

func resolveConfigPath(scope Scope, absDir string) (string, error) {
	switch scope {
	case ScopeProject:
		return filepath.Join(absDir, ".mcp.json"), nil
	case ScopeUser:
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		return filepath.Join(homeDir, ".claude.json"), nil
	}
	return "", fmt.Errorf("unknown scope %q", scope)
}

func buildEntry(binaryPath string, serverArgs []string) mcpServerEntry {
	if runtime.GOOS == "windows" {
		args := append([]string{"/C", binaryPath}, serverArgs...)
		return mcpServerEntry{Command: "cmd", Args: args}
	}
	return mcpServerEntry{Command: binaryPath, Args: serverArgs}
}

// writeConfig merges entry into the mcpServers object of configPath, keeping other keys.
func writeConfig(configPath string, serverName string, entry mcpServerEntry) error {
	config := map[string]any{
		"mcpServers": map[string]any{},
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, &config); err != nil {
			return fmt.Errorf("parsing existing config %s: %w", configPath, err)
		}
	}

	servers, ok := config["mcpServers"]
	if !ok {
		servers = map[string]any{}
		config["mcpServers"] = servers
	}
	serversMap, ok := servers.(map[string]any)
	if !ok {
		return fmt.Errorf("mcpServers in %s is not an object", configPath)
	}
	serversMap[serverName] = entry

	output, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	output = append(output, '\n')

	// Write to a temp file in the same directory, then rename.
	configDir := filepath.Dir(configPath)
	tmpFile, err := os.CreateTemp(configDir, ".mcp-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", configDir, err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(output); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file %s: %w", tmpPath, err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, configPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming %s to %s: %w", tmpPath, configPath, err)
	}
	return nil
}
