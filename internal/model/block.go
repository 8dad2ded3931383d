package model

import (
	"strings"
	"time"
	"unicode/utf8"
)

// BlockStatus is the state of a Block.
type BlockStatus string

// Block status constants
const (
	BlockRunning   BlockStatus = "running"
	BlockCompleted BlockStatus = "completed"
	BlockFailed    BlockStatus = "failed"
)

// DiffType is the kind of change a block is expected to produce.
type DiffType string

// Diff type constants
const (
	DiffParagraph DiffType = "paragraph"
	DiffSection   DiffType = "section"
	DiffSlide     DiffType = "slide"
	DiffFigure    DiffType = "figure"
	DiffCommit    DiffType = "commit"
)

// Valid reports whether d is one of the known diff types.
func (d DiffType) Valid() bool {
	switch d {
	case DiffParagraph, DiffSection, DiffSlide, DiffFigure, DiffCommit:
		return true
	}
	return false
}

const (
	// BlockDuration is the fixed length of an execution block.
	BlockDuration = 30 * time.Minute

	// MinDiffChars is the minimum net growth of normalized content that counts as a diff.
	MinDiffChars = 50
)

// Block is a timed execution session against one artifact.
type Block struct {
	ID               string      `json:"id"`
	ArtifactID       string      `json:"artifact_id"`
	ExpectedDiffType DiffType    `json:"expected_diff_type"`
	StartTime        time.Time   `json:"start_time"`
	EndTime          *time.Time  `json:"end_time"`
	ContentBefore    string      `json:"content_before"`
	ContentAfter     *string     `json:"content_after"`
	HasDiff          bool        `json:"has_diff"`
	Status           BlockStatus `json:"status"`
}

// NewBlock creates a running block that snapshots the content at start.
func NewBlock(id, artifactID string, diffType DiffType, contentBefore string, now time.Time) Block {
	return Block{
		ID:               id,
		ArtifactID:       artifactID,
		ExpectedDiffType: diffType,
		StartTime:        now,
		ContentBefore:    contentBefore,
		Status:           BlockRunning,
	}
}

// End closes a running block, classifying it by diff detection.
func (b *Block) End(contentAfter string, now time.Time) error {
	if b.Status != BlockRunning {
		return ErrBlockNotRunning
	}
	b.HasDiff = DetectDiff(b.ContentBefore, contentAfter)
	b.Status = BlockFailed
	if b.HasDiff {
		b.Status = BlockCompleted
	}
	b.EndTime = &now
	b.ContentAfter = &contentAfter
	return nil
}

// Expired reports whether a running block has outlived d at now.
func (b *Block) Expired(now time.Time, d time.Duration) bool {
	return b.Status == BlockRunning && now.Sub(b.StartTime) > d
}

// DetectDiff reports whether after adds at least MinDiffChars of normalized
// content over before. Formatting-only edits and deletions never qualify.
func DetectDiff(before, after string) bool {
	if before == after {
		return false
	}
	normBefore := normalizeSpace(before)
	normAfter := normalizeSpace(after)
	if normBefore == normAfter {
		return false
	}
	return utf8.RuneCountInString(normAfter)-utf8.RuneCountInString(normBefore) >= MinDiffChars
}

// normalizeSpace trims s and collapses whitespace runs to a single space.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// BlockStats aggregates the blocks of one artifact.
type BlockStats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	WithDiff  int `json:"with_diff"`
	Failed    int `json:"failed"`
}
