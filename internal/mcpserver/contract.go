package mcpserver

// RecordFormatContract describes the catalog record format that LLM
// consumers should follow when creating records.
const RecordFormatContract = `# Shelf Record Format Contract

Every book in the library comes from one Markdown record in the catalog
directory. Records MUST follow this structure.

## Structure

` + "```" + `markdown
---
id: 7                               # OPTIONAL – pins the book id (/books/7)
title: Dune                         # REQUIRED unless the body starts with "# Title"
authors: [Frank Herbert]            # OPTIONAL – list or single string
subjects: [Science Fiction, Ecology]
year: 1965
language: en
publisher: Chilton Books
description: Desert planet politics.
color: "#d4a017"                    # OPTIONAL – #rgb, #rrggbb or 0-255
tags: [Reading/2025, Favorites]     # OPTIONAL – added to the book, never removed
files:
  - {format: epub, path: /media/books/dune.epub, size: 1536000, hash: "b3:aa11"}
---

Extracted full text of the book. grep and find text: search it.
` + "```" + `

## Rules

1. **Frontmatter fences** ` + "`" + `---` + "`" + ` must open the file.
2. **Paths** end with ` + "`" + `.md` + "`" + `, use forward slashes and contain no hidden segments.
3. **Ids** are unique. Creating a record that pins an id already in use fails.
4. **Tags** are slash-separated paths. Segments may not be
   ` + "`" + `description` + "`" + `, ` + "`" + `color` + "`" + ` or ` + "`" + `.tag` + "`" + `. A numeric
   subtag hides a tagged book with the same id inside that tag directory.
5. **Authors** are full names ("Ursula K Le Guin"); the tree files them under
   a last-name-first slug (` + "`" + `/authors/le-guin-ursula-k` + "`" + `).
`

// ShellGuide explains the virtual filesystem and the shell commands.
const ShellGuide = `# Shelf Shell Guide

The library is a read-mostly virtual filesystem driven by Unix-like commands.

## Tree

    /books/<id>/{title,authors,subjects,description,text,year,language,
                 publisher,metadata,color,files/,similar/,tags/}
    /authors/<slug>/{name,books/}
    /subjects/<slug>/{name,books/}
    /tags/<tag>/<subtag>/...   # user tags; book links are named by id

Links under similar/, books/ and tags/ point at canonical paths.
Only tag description and color, and a book's color, are writable.

## Commands

    cd, pwd, ls [-l] [path...], tree [-L n] [path], cat [file...]
    grep [-r -i -n] <regex> [path...], find field:value...
    head/tail [-n N], wc [-l|-w|-c], sort [-r], uniq [-c], echo
    ln <book> <tag>, mv <tag>/<id> <tag>, mv <tag> <tag>
    rm [-r] <path>, mkdir [-p] <tag>
    cmd | cmd ...   cmd > <writable file>

find fields: title, author, subject, tag, year, language, publisher, text.
Values with * ? [ { are globs; others match as substrings.

## Examples

    find author:le*guin subject:fantasy
    grep -rin spice /books/7
    cat /books/7/text | head -n 3 | wc -w
    mkdir -p /tags/Reading/2025
    ln /books/7 /tags/Reading/2025
    echo "Books for the winter" > /tags/Reading/description
`
