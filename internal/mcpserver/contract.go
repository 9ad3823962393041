package mcpserver

// ProjectFormatContract describes the canonical project record format that
// LLM consumers should follow when creating or updating projects.
const ProjectFormatContract = `# Folio Project Record Contract

Every project record in the portfolio collection MUST follow this structure.

## Structure

` + "```" + `json
{
  "id": "my-project",
  "title": "My Project",
  "description": "One or two sentences about what it is.",
  "creationDate": "2025-01-15",
  "tags": ["go", "web"],
  "pageLink": "https://example.com/my-project",
  "sourceLink": "https://github.com/user/my-project",
  "thumbnailLink": "asset://my-project.png",
  "featured": true
}
` + "```" + `

## Rules

1. **` + "`" + `id` + "`" + ` is required and immutable.** Lowercase kebab-case slug
   (letters, digits, single hyphens). It doubles as the thumbnail asset name.
2. **` + "`" + `title` + "`" + `, ` + "`" + `description` + "`" + `, ` + "`" + `creationDate` + "`" + ` and ` + "`" + `pageLink` + "`" + ` are required.**
3. **` + "`" + `creationDate` + "`" + ` is a plain ` + "`" + `YYYY-MM-DD` + "`" + ` date.** No time component, no timezone.
4. **Tags** are free-form strings; keep them short and lowercase.
5. **` + "`" + `sourceLink` + "`" + `, ` + "`" + `thumbnailLink` + "`" + ` and ` + "`" + `featured` + "`" + ` are optional.** Omit them rather than sending empty values.

## Thumbnails

- ` + "`" + `thumbnailLink` + "`" + ` is either an external URL or an ` + "`" + `asset://<id><ext>` + "`" + ` reference
  to an image managed by the asset store.
- Managed thumbnails are uploaded through the admin API, not through MCP tools;
  records created here may reference external URLs or omit the field.
- Supported managed formats: png, jpg, gif, webp, at most 5 MiB.
`
