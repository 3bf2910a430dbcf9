package mcpserver

// TaskFormatContract describes the task file format that MCP clients must
// follow when creating tasks.
const TaskFormatContract = `# Task File Format

A task is a Markdown file inside the tasks folder (default ` + "`Tasks/`" + `).
Files under any ` + "`templates/`" + ` folder are ignored. The first folder
below the tasks folder is the task's project.

## Structure

` + "```" + `markdown
---
name: Write quarterly report   # REQUIRED
start: 2025-01-03              # REQUIRED, YYYY-MM-DD
end: 2025-01-10                # OPTIONAL, YYYY-MM-DD, not before start
category: work                 # OPTIONAL, default "default"
status: planned                # OPTIONAL, default "planned"
priority: 2                    # OPTIONAL, integer 1-5, default 5
---

Free-form Markdown body.

- [x] Collect numbers
- [ ] Draft summary
` + "```" + `

## Rules

1. The metadata block is mandatory. The first line of the file is ` + "`---`" + `
   and the block ends at the next ` + "`---`" + ` line.
2. Each metadata line is ` + "`key: value`" + `, split at the first colon. Values
   are plain text; no YAML quoting, lists or nesting.
3. Unknown keys are kept and returned as extra fields.
4. Checkbox lines (` + "`- [ ]`" + ` / ` + "`- [x]`" + `) in the body count as subtasks.
5. Paths end with ` + "`.md`" + ` and use forward slashes.
`
