// Package filter decides which copilot listings the user's roster can run.
package filter

import (
	"encoding/json"
	"fmt"

	"github.com/bnema/maa-copilot-filter/internal/models"
	"github.com/bnema/maa-copilot-filter/internal/roster"
)

// Evaluation is the verdict for one listing
type Evaluation struct {
	Pass         bool `json:"pass"`
	MissingCount int  `json:"missing_count"`
}

// Outcome is the result of decoding a listing body. Exactly one of Content
// (Parsed) or Err (Unparseable) is meaningful.
type Outcome struct {
	Parsed  bool
	ID      string
	Title   string
	Content models.CopilotContent
	Err     error
}

// Unparseable reports whether the listing could not be understood
func (o Outcome) Unparseable() bool {
	return !o.Parsed
}

// contentDocument is a content document as Decode reads it. Only the
// requirement sequences must be well formed; the title fields are raw so
// they can never make a listing unparseable.
type contentDocument struct {
	models.CopilotContent
	StageName json.RawMessage `json:"stage_name"`
	Doc       json.RawMessage `json:"doc"`
}

// Decode reads a raw listing and its embedded content document
func Decode(listing models.RawListing) Outcome {
	var item models.CopilotItem
	if err := json.Unmarshal(listing, &item); err != nil {
		return Outcome{Err: fmt.Errorf("listing: %w", err)}
	}
	id := item.Key()

	var doc contentDocument
	if err := json.Unmarshal([]byte(item.Content), &doc); err != nil {
		return Outcome{ID: id, Err: fmt.Errorf("listing %s content: %w", id, err)}
	}

	return Outcome{
		Parsed:  true,
		ID:      id,
		Title:   doc.title(),
		Content: doc.CopilotContent,
	}
}

// title prefers doc.title over stage_name; values of other types are ignored
func (d contentDocument) title() string {
	var doc struct {
		Title string `json:"title"`
	}
	if json.Unmarshal(d.Doc, &doc) == nil && doc.Title != "" {
		return doc.Title
	}
	var stage string
	if json.Unmarshal(d.StageName, &stage) == nil {
		return stage
	}
	return ""
}

// Miss reasons
const (
	MissNotOwned      = "not-owned"
	MissNeedsEliteTwo = "top-rarity-below-elite-2"
	MissSkillLocked   = "skill-locked"
	MissGroup         = "group-unmet"
)

// IsOperatorEligible reports whether the roster can field the required
// operator at the required skill
func IsOperatorEligible(req models.CopilotOper, idx *roster.Index, cfg models.FilterConfig) bool {
	return operatorMiss(req, idx, cfg) == ""
}

// operatorMiss returns why req is not eligible, or "" when it is
func operatorMiss(req models.CopilotOper, idx *roster.Index, cfg models.FilterConfig) string {
	owned, ok := idx.Lookup(req.Name)
	if !ok {
		return MissNotOwned
	}

	// Unpromoted top-rarity operators count as not owned
	if cfg.RequireEliteTwoForTopRarity && owned.Rarity == cfg.TopRarity && owned.Elite < 2 {
		return MissNeedsEliteTwo
	}

	if req.RequiredSkill() > owned.MaxSkill {
		return MissSkillLocked
	}
	return ""
}

// IsGroupEligible reports whether any member of the group is eligible.
// A group without members is satisfied.
func IsGroupEligible(group models.CopilotGroup, idx *roster.Index, cfg models.FilterConfig) bool {
	if len(group.Opers) == 0 {
		return true
	}
	for _, oper := range group.Opers {
		if IsOperatorEligible(oper, idx, cfg) {
			return true
		}
	}
	return false
}

// Evaluate counts unmet operators and groups and applies the pass threshold
func Evaluate(content models.CopilotContent, idx *roster.Index, cfg models.FilterConfig) Evaluation {
	missing := 0

	for _, oper := range content.Opers {
		if !IsOperatorEligible(oper, idx, cfg) {
			missing++
		}
	}

	for _, group := range content.Groups {
		if !IsGroupEligible(group, idx, cfg) {
			missing++
		}
	}

	return Evaluation{
		Pass:         passes(missing, cfg),
		MissingCount: missing,
	}
}

// EvaluateListing decodes and evaluates a raw listing. Listings that cannot
// be decoded always pass.
func EvaluateListing(listing models.RawListing, idx *roster.Index, cfg models.FilterConfig) Evaluation {
	out := Decode(listing)
	if out.Unparseable() {
		return Evaluation{Pass: true}
	}
	return Evaluate(out.Content, idx, cfg)
}

func passes(missing int, cfg models.FilterConfig) bool {
	if cfg.AllowOneMissing {
		return missing <= 1
	}
	return missing == 0
}

// Result is the output of FilterListings
type Result struct {
	Listings []models.RawListing
	Removed  int
}

// FilterListings keeps the listings the roster can run, in their original
// order. It returns the input unchanged when filtering is disabled or no
// roster has been imported.
func FilterListings(listings []models.RawListing, idx *roster.Index, cfg models.FilterConfig) Result {
	if !Active(idx, cfg) {
		return Result{Listings: listings}
	}

	kept := make([]models.RawListing, 0, len(listings))
	for _, l := range listings {
		if EvaluateListing(l, idx, cfg).Pass {
			kept = append(kept, l)
		}
	}

	return Result{
		Listings: kept,
		Removed:  len(listings) - len(kept),
	}
}

// Active reports whether filtering would evaluate anything
func Active(idx *roster.Index, cfg models.FilterConfig) bool {
	return cfg.Enabled && !idx.Empty()
}
