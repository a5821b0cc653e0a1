package tool

import "strings"

// pathArgNames are the argument fields known to carry filesystem paths.
// Rewriting happens before the external call; classification reuses them to
// attach a path to the audit artifact.
var pathArgNames = []string{
	"path", "file_path", "filepath", "file", "dir", "directory",
	"source", "destination", "target", "cwd",
}

// filesystemServiceHints mark services whose identity implies filesystem
// access regardless of individual tool names.
var filesystemServiceHints = []string{"fs", "file", "filesystem", "disk", "workspace"}

// filesystemToolHints mark individual tools as filesystem operations.
var filesystemToolHints = []string{
	"read", "write", "edit", "append", "create", "delete", "remove", "move",
	"copy", "rename", "list", "glob", "grep", "mkdir", "touch", "stat", "tree",
}

// isFilesystemTool classifies a descriptor as filesystem-capable from its
// service identity and tool name.
func isFilesystemTool(serviceID, serviceName, toolName string) bool {
	svc := strings.ToLower(serviceID + " " + serviceName)
	for _, hint := range filesystemServiceHints {
		if strings.Contains(svc, hint) {
			return true
		}
	}
	name := strings.ToLower(toolName)
	for _, hint := range filesystemToolHints {
		if strings.Contains(name, hint) {
			return true
		}
	}
	return false
}

func isPathArg(name string) bool {
	lower := strings.ToLower(name)
	for _, known := range pathArgNames {
		if lower == known {
			return true
		}
	}
	return false
}

// classifyArtifact infers an audit artifact from the tool vocabulary plus
// argument field names. path should already be sandbox-rewritten.
func classifyArtifact(serviceID, serviceName, toolName, path string) *Artifact {
	name := strings.ToLower(toolName)

	kind := ArtifactOther
	op := ArtifactOp("")
	switch {
	case containsAny(name, "bash", "exec", "shell", "command", "terminal"):
		kind, op = ArtifactShell, OpExecute
	case containsAny(name, "fetch", "http", "web", "browse", "download", "url"):
		kind = ArtifactWeb
		op = OpRead
		if containsAny(name, "search") {
			op = OpSearch
		}
	case isFilesystemTool(serviceID, serviceName, toolName):
		kind = ArtifactFile
	}

	if op == "" {
		switch {
		case containsAny(name, "append"):
			op = OpAppend
		case containsAny(name, "write", "create", "mkdir", "touch", "new"):
			op = OpCreate
		case containsAny(name, "edit", "update", "patch", "replace", "rename", "move"):
			op = OpUpdate
		case containsAny(name, "delete", "remove", "rm", "unlink"):
			op = OpDelete
		case containsAny(name, "list", "glob", "ls", "tree"):
			op = OpList
		case containsAny(name, "grep", "search", "find", "query"):
			op = OpSearch
		case containsAny(name, "read", "cat", "get", "stat", "view"):
			op = OpRead
		default:
			op = OpExecute
		}
	}

	artifact := &Artifact{Kind: kind, Operation: op}
	if kind == ArtifactFile {
		artifact.Path = path
	}
	return artifact
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
