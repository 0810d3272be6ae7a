// Package register implements the "register" subcommand: it writes an MCP
// server entry for this binary into a project .mcp.json or the user-level
// client config, so the server can be wired up without hand-editing JSON.
package register

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

type serverEntry struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// Run executes the register subcommand. serverName is the MCP server name
// (e.g. "repovector"); args is everything after "register" on the command
// line. Usage errors are reported via the returned error; the caller decides
// how to exit.
func Run(serverName string, args []string) error {
	if len(args) == 0 {
		return usageError()
	}

	scope := args[0]
	if scope != "project" && scope != "user" {
		return fmt.Errorf("unknown scope %q (must be \"project\" or \"user\")\n%s", scope, usage())
	}

	directory, serverArgs := splitArgs(scope, args[1:])

	binaryPath, err := executablePath()
	if err != nil {
		return fmt.Errorf("detecting binary path: %w", err)
	}

	configPath, err := configPathFor(scope, directory)
	if err != nil {
		return err
	}

	if err := upsertEntry(configPath, serverName, newEntry(binaryPath, serverArgs)); err != nil {
		return err
	}

	fmt.Printf("Registered %q in %s\n", serverName, configPath)
	return nil
}

// DeriveServerName extracts a server name from a binary path by stripping
// .exe and -mcp suffixes.
func DeriveServerName(binaryPath string) string {
	name := filepath.Base(binaryPath)
	name = strings.TrimSuffix(name, ".exe")
	name = strings.TrimSuffix(name, "-mcp")
	return name
}

func usage() string {
	binaryName := filepath.Base(os.Args[0])
	var builder strings.Builder
	fmt.Fprintf(&builder, "Usage:\n")
	fmt.Fprintf(&builder, "  %s register project [directory]  # → <directory>/.mcp.json (default: .)\n", binaryName)
	fmt.Fprintf(&builder, "  %s register user                 # → ~/.claude.json\n", binaryName)
	fmt.Fprintf(&builder, "  %s register project . -- --flag  # forward args to server\n", binaryName)
	fmt.Fprintf(&builder, "  %s register user -- --flag       # forward args to server\n", binaryName)
	return builder.String()
}

func usageError() error {
	return fmt.Errorf("missing scope\n%s", usage())
}

// splitArgs separates the optional project directory from the server args
// that follow a "--" separator. For user scope there is no directory.
func splitArgs(scope string, args []string) (directory string, serverArgs []string) {
	if scope == "project" {
		directory = "."
	}
	for i, arg := range args {
		if arg == "--" {
			return directory, args[i+1:]
		}
		if scope == "project" && i == 0 {
			directory = arg
		}
	}
	return directory, nil
}

func executablePath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(exe)
}

func configPathFor(scope string, directory string) (string, error) {
	if scope == "project" {
		absDir, err := filepath.Abs(directory)
		if err != nil {
			return "", fmt.Errorf("resolving directory %s: %w", directory, err)
		}
		return filepath.Join(absDir, ".mcp.json"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(homeDir, ".claude.json"), nil
}

func newEntry(binaryPath string, serverArgs []string) serverEntry {
	if runtime.GOOS == "windows" {
		args := append([]string{"/C", binaryPath}, serverArgs...)
		return serverEntry{Command: "cmd", Args: args}
	}
	return serverEntry{Command: binaryPath, Args: serverArgs}
}

// upsertEntry adds or replaces the named server in the config file,
// preserving every other entry. The write is atomic: temp file in the same
// directory, then rename.
func upsertEntry(configPath string, serverName string, entry serverEntry) error {
	config := map[string]any{
		"mcpServers": map[string]any{},
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, &config); err != nil {
			return fmt.Errorf("parsing existing config %s: %w", configPath, err)
		}
	}

	servers, ok := config["mcpServers"].(map[string]any)
	if !ok {
		if _, present := config["mcpServers"]; present {
			return fmt.Errorf("mcpServers in %s is not an object", configPath)
		}
		servers = map[string]any{}
		config["mcpServers"] = servers
	}
	servers[serverName] = entry

	output, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	output = append(output, '\n')

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
