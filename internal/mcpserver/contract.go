package mcpserver

// VaultConventions describes the Markdown conventions the indexer reads
// notes, links and attributes from.
const VaultConventions = `# Vault Conventions

Every Markdown file under the vault root becomes one note. The note id is the
vault-relative path without the ` + "`" + `.md` + "`" + ` extension (e.g. ` + "`" + `projects/alpha` + "`" + `).

## Frontmatter

` + "```" + `markdown
---
title: Human-readable title      # falls back to the first H1, then the file name
tags: [graph, research]          # list or comma-separated string
type: permanent                  # fleeting | permanent | link
user: alice                      # owner; the configured default user otherwise
created: 2025-01-15              # ISO-8601 date or datetime
related:                         # each entry becomes a "mention" link
  - "[[projects/beta]]"
---
` + "```" + `

## Links

1. ` + "`" + `[[target]]` + "`" + ` in the body becomes a "reference" link. ` + "`" + `[[target#Heading|alias]]` + "`" + `
   links to ` + "`" + `target` + "`" + `.
2. A target is resolved by exact note id first, then by a unique basename match
   (` + "`" + `[[alpha]]` + "`" + ` resolves to ` + "`" + `projects/alpha` + "`" + ` when no other note is named alpha).
3. Unresolved targets are kept as links to missing notes; ` + "`" + `validate_links` + "`" + ` reports
   them as broken.
4. Inline ` + "`" + `#tags` + "`" + ` in the body are merged with frontmatter tags.
`
