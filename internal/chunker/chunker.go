// Package chunker splits framework documents into retrieval-sized chunks
// while respecting document structure. It recognizes markdown headings,
// chapter markers, numbered sections and COBIT objective codes, packs
// sentences into chunks with a trailing overlap, and records exact character
// offsets into the source so every byte of a section is attributable to a
// chunk.
package chunker

import (
	"fmt"
	"regexp"
	"strings"

	"adoptsim/internal/logging"
)

// Packing parameters. Overlap is trailing: each chunk after the first in a
// section starts with the tail of its predecessor.
const (
	MaxChunkSize     = 2000
	OverlapSize      = 200
	MinChunkSize     = 500
	MaxSections      = 50
	MaxKeywords      = 10
	MaxTitleLength   = 80
	CharsPerPage     = 3000
	MaxSectionsDepth = 6
)

// Chunk is one retrieval unit. Content is a contiguous slice of the source
// document: Content == source[StartOffset:EndOffset]. The first OverlapLen
// bytes repeat the tail of the previous chunk in the same section, so
// stripping them and concatenating reconstructs the section exactly.
type Chunk struct {
	Index       int      `json:"index"`
	Content     string   `json:"content"`
	StartOffset int      `json:"start_offset"`
	EndOffset   int      `json:"end_offset"`
	OverlapLen  int      `json:"overlap_len"`
	Section     string   `json:"section"`
	Keywords    []string `json:"keywords"`
	Page        int      `json:"page"`
}

// SectionInfo is one entry of the detected document structure.
type SectionInfo struct {
	Title       string `json:"title"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
	Level       int    `json:"level"`
}

// StructureKind names the detected document shape.
type StructureKind string

const (
	StructureMarkdown StructureKind = "markdown"
	StructureChapters StructureKind = "chapters"
	StructureCOBIT    StructureKind = "cobit"
	StructureNumbered StructureKind = "numbered"
	StructureFlat     StructureKind = "flat"
)

// Result is the full chunking outcome for one document.
type Result struct {
	Title          string        `json:"title"`
	Kind           StructureKind `json:"kind"`
	Chunks         []Chunk       `json:"chunks"`
	Structure      []SectionInfo `json:"structure"`
	EstimatedPages int           `json:"estimated_pages"`
}

var (
	markdownHeading = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+)$`)
	cobitObjective  = regexp.MustCompile(`(?m)^((?:EDM|APO|BAI|DSS|MEA)\d{2})\b.*$`)
	chapterHeading  = regexp.MustCompile(`(?mi)^((?:chapter|cap[ií]tulo)\s+\d+\b.*)$`)
	numberedSection = regexp.MustCompile(`(?m)^(\d+(?:\.\d+)*)[.)]?\s+(\S.*)$`)
	acronymPattern  = regexp.MustCompile(`\b[A-Z]{2,6}\d{0,2}\b`)
)

// frameworkTerms are harvested as keywords when they appear in a chunk.
var frameworkTerms = []string{
	"scrum", "kanban", "sprint", "agile", "safe", "cobit", "itil", "okr",
	"lean", "devops", "backlog", "retrospective", "standup", "governance",
	"compliance", "roi", "velocity", "stakeholder", "transformation",
	"adoption", "framework", "ceremony", "epic", "squad", "tribe",
	"waterfall", "milestone", "kpi", "maturity",
}

// ChunkDocument splits content into overlapping, offset-tracked chunks.
func ChunkDocument(content string) (*Result, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("empty document")
	}

	kind, sections := detectStructure(content)
	logging.Chunker("structure detected: %s (%d sections, %d chars)", kind, len(sections), len(content))

	res := &Result{
		Title:          extractTitle(content),
		Kind:           kind,
		Structure:      sections,
		EstimatedPages: len(content)/CharsPerPage + 1,
	}

	for _, sec := range sections {
		secChunks := chunkSection(content, sec)
		res.Chunks = append(res.Chunks, secChunks...)
	}

	for i := range res.Chunks {
		res.Chunks[i].Index = i
		res.Chunks[i].Keywords = extractKeywords(res.Chunks[i].Content)
		res.Chunks[i].Page = res.Chunks[i].StartOffset/CharsPerPage + 1
	}

	logging.Chunker("produced %d chunks (~%d pages)", len(res.Chunks), res.EstimatedPages)
	return res, nil
}

// =============================================================================
// STRUCTURE DETECTION
// =============================================================================

// detectStructure tries the recognizers in specificity order: COBIT codes,
// markdown headings, chapter markers, numbered sections, flat fallback.
func detectStructure(content string) (StructureKind, []SectionInfo) {
	if m := cobitObjective.FindAllStringSubmatchIndex(content, -1); len(m) >= 2 {
		return StructureCOBIT, sectionsFromMatches(content, m, func(match []int) (string, int) {
			return strings.TrimSpace(content[match[0]:match[1]]), 1
		})
	}
	if m := markdownHeading.FindAllStringSubmatchIndex(content, -1); len(m) >= 2 {
		return StructureMarkdown, sectionsFromMatches(content, m, func(match []int) (string, int) {
			level := match[3] - match[2]
			if level > MaxSectionsDepth {
				level = MaxSectionsDepth
			}
			return strings.TrimSpace(content[match[4]:match[5]]), level
		})
	}
	if m := chapterHeading.FindAllStringSubmatchIndex(content, -1); len(m) >= 2 {
		return StructureChapters, sectionsFromMatches(content, m, func(match []int) (string, int) {
			return strings.TrimSpace(content[match[0]:match[1]]), 1
		})
	}
	if m := numberedSection.FindAllStringSubmatchIndex(content, -1); len(m) >= 3 {
		return StructureNumbered, sectionsFromMatches(content, m, func(match []int) (string, int) {
			depth := strings.Count(content[match[2]:match[3]], ".") + 1
			if depth > MaxSectionsDepth {
				depth = MaxSectionsDepth
			}
			return strings.TrimSpace(content[match[0]:match[1]]), depth
		})
	}

	return StructureFlat, []SectionInfo{{
		Title:       extractTitle(content),
		StartOffset: 0,
		EndOffset:   len(content),
		Level:       1,
	}}
}

// sectionsFromMatches converts heading match positions into half-open section
// ranges covering the entire document. Content before the first heading
// becomes a preamble section. Headings beyond MaxSections fold into the last
// section.
func sectionsFromMatches(content string, matches [][]int, describe func([]int) (string, int)) []SectionInfo {
	var sections []SectionInfo

	if matches[0][0] > 0 {
		sections = append(sections, SectionInfo{
			Title:       "Preamble",
			StartOffset: 0,
			EndOffset:   matches[0][0],
			Level:       1,
		})
	}

	for i, m := range matches {
		if len(sections) >= MaxSections-1 && i < len(matches)-1 {
			// Fold the remainder into one final section.
			title, level := describe(m)
			sections = append(sections, SectionInfo{
				Title:       truncateTitle(title),
				StartOffset: m[0],
				EndOffset:   len(content),
				Level:       level,
			})
			return sections
		}
		end := len(content)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		title, level := describe(m)
		sections = append(sections, SectionInfo{
			Title:       truncateTitle(title),
			StartOffset: m[0],
			EndOffset:   end,
			Level:       level,
		})
	}
	return sections
}

// =============================================================================
// SENTENCE PACKING
// =============================================================================

// span is a half-open [start,end) range into the source document.
type span struct{ start, end int }

// splitSentences returns contiguous sentence spans covering sec exactly.
// Each span includes its trailing whitespace so concatenation loses nothing.
func splitSentences(content string, sec SectionInfo) []span {
	var spans []span
	start := sec.StartOffset
	i := sec.StartOffset
	for i < sec.EndOffset {
		c := content[i]
		if c == '.' || c == '!' || c == '?' || c == '\n' {
			// Consume the terminator run and trailing whitespace.
			j := i + 1
			for j < sec.EndOffset && (content[j] == '.' || content[j] == '!' || content[j] == '?') {
				j++
			}
			if j < sec.EndOffset && isSpace(content[j]) {
				for j < sec.EndOffset && isSpace(content[j]) {
					j++
				}
				spans = append(spans, span{start, j})
				start = j
				i = j
				continue
			}
			if c == '\n' {
				spans = append(spans, span{start, j})
				start = j
				i = j
				continue
			}
			i = j
			continue
		}
		i++
	}
	if start < sec.EndOffset {
		spans = append(spans, span{start, sec.EndOffset})
	}
	return spans
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// chunkSection packs a section's sentences into chunks of at most
// MaxChunkSize bytes of new material, each subsequent chunk prefixed with up
// to OverlapSize bytes of its predecessor's tail. Undersized trailing chunks
// merge back into their predecessor.
func chunkSection(content string, sec SectionInfo) []Chunk {
	sentences := splitSentences(content, sec)
	if len(sentences) == 0 {
		return nil
	}

	// Each element is [newStart, end): the chunk's new material.
	var pieces []span
	cur := span{sentences[0].start, sentences[0].start}
	for _, s := range sentences {
		sentLen := s.end - s.start
		curLen := cur.end - cur.start
		if curLen > 0 && curLen+sentLen > MaxChunkSize {
			pieces = append(pieces, cur)
			cur = span{s.start, s.start}
		}
		// Oversized single sentences are split hard at MaxChunkSize.
		for sentLen > MaxChunkSize {
			pieces = append(pieces, span{s.start, s.start + MaxChunkSize})
			s.start += MaxChunkSize
			sentLen = s.end - s.start
			cur = span{s.start, s.start}
		}
		cur.end = s.end
	}
	if cur.end > cur.start {
		pieces = append(pieces, cur)
	}

	// Merge a trailing runt into its predecessor.
	if n := len(pieces); n >= 2 && pieces[n-1].end-pieces[n-1].start < MinChunkSize {
		pieces[n-2].end = pieces[n-1].end
		pieces = pieces[:n-1]
	}

	chunks := make([]Chunk, 0, len(pieces))
	for i, p := range pieces {
		start := p.start
		overlap := 0
		if i > 0 {
			start = overlapStart(content, sec, pieces[i-1], p.start)
			overlap = p.start - start
		}
		chunks = append(chunks, Chunk{
			Content:     content[start:p.end],
			StartOffset: start,
			EndOffset:   p.end,
			OverlapLen:  overlap,
			Section:     sec.Title,
		})
	}
	return chunks
}

// overlapStart picks where the overlap prefix begins: the start of the last
// sentence of the previous chunk if that sentence fits in OverlapSize, else
// a hard cut OverlapSize bytes back.
func overlapStart(content string, sec SectionInfo, prev span, boundary int) int {
	floor := boundary - OverlapSize
	if floor < prev.start {
		floor = prev.start
	}
	// Walk back from the boundary looking for a sentence break inside the window.
	for i := boundary - 2; i > floor; i-- {
		c := content[i]
		if (c == '.' || c == '!' || c == '?' || c == '\n') && isSpace(content[i+1]) {
			return i + 2
		}
	}
	return floor
}

// =============================================================================
// KEYWORDS AND TITLES
// =============================================================================

// extractKeywords harvests framework vocabulary and acronyms, capped at
// MaxKeywords, order stable (terms first, then acronyms).
func extractKeywords(text string) []string {
	seen := make(map[string]bool)
	var out []string

	lower := strings.ToLower(text)
	for _, term := range frameworkTerms {
		if len(out) >= MaxKeywords {
			return out
		}
		if strings.Contains(lower, term) && !seen[term] {
			seen[term] = true
			out = append(out, term)
		}
	}

	for _, acr := range acronymPattern.FindAllString(text, -1) {
		if len(out) >= MaxKeywords {
			return out
		}
		key := strings.ToLower(acr)
		if !seen[key] {
			seen[key] = true
			out = append(out, acr)
		}
	}
	return out
}

// extractTitle uses the first markdown heading, falling back to the first
// non-empty line, capped at MaxTitleLength.
func extractTitle(content string) string {
	if m := markdownHeading.FindStringSubmatch(content); m != nil {
		return truncateTitle(strings.TrimSpace(m[2]))
	}
	for _, line := range strings.Split(content, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			return truncateTitle(t)
		}
	}
	return "Untitled"
}

func truncateTitle(t string) string {
	if len(t) <= MaxTitleLength {
		return t
	}
	return t[:MaxTitleLength]
}
