package ralph

import (
	"github.com/slocombe/foreman/internal/worker"
)

// Outcome is one checklist item's verification result.
type Outcome string

const (
	OutcomePending Outcome = "pending"
	OutcomePass    Outcome = "pass"
	OutcomeFail    Outcome = "fail"
	OutcomeSkip    Outcome = "skip"
)

// ChecklistItem is one verification category's latest outcome, with its
// captured output bounded by the loop's truncation limit.
type ChecklistItem struct {
	ID       string  `json:"id"`
	Outcome  Outcome `json:"outcome"`
	Required bool    `json:"required"`
	Output   string  `json:"output,omitempty"`
}

// Checklist is the ordered set of checks a task must satisfy. Order is
// fixed at construction so snapshots are deterministic.
type Checklist struct {
	items []*ChecklistItem
}

// NewChecklist builds the checklist the loop configuration implies:
// implementation is always present and required; build, lint, and test are
// present only when enabled. Lint is not required when the loop is
// configured to continue past lint failures.
func NewChecklist(cfg Config) *Checklist {
	c := &Checklist{}
	c.items = append(c.items, &ChecklistItem{
		ID: worker.CheckImplement, Outcome: OutcomePending, Required: true,
	})
	if cfg.RunBuild {
		c.items = append(c.items, &ChecklistItem{
			ID: worker.CheckBuild, Outcome: OutcomePending, Required: true,
		})
	}
	if cfg.RunLint {
		c.items = append(c.items, &ChecklistItem{
			ID: worker.CheckLint, Outcome: OutcomePending,
			Required: !cfg.ContinueOnLintFailure,
		})
	}
	if cfg.RunTests {
		c.items = append(c.items, &ChecklistItem{
			ID: worker.CheckTest, Outcome: OutcomePending, Required: true,
		})
	}
	return c
}

// Item returns the item with the given ID, or nil.
func (c *Checklist) Item(id string) *ChecklistItem {
	for _, item := range c.items {
		if item.ID == id {
			return item
		}
	}
	return nil
}

// Items returns the items in construction order.
func (c *Checklist) Items() []*ChecklistItem {
	return append([]*ChecklistItem(nil), c.items...)
}

// Set records an outcome and output for one item. Unknown IDs are ignored.
func (c *Checklist) Set(id string, outcome Outcome, output string) {
	if item := c.Item(id); item != nil {
		item.Outcome = outcome
		item.Output = output
	}
}

// AllRequiredPass reports whether every required item currently passes.
func (c *Checklist) AllRequiredPass() bool {
	for _, item := range c.items {
		if item.Required && item.Outcome != OutcomePass {
			return false
		}
	}
	return true
}

// FailedItems returns the items whose latest outcome is fail.
func (c *Checklist) FailedItems() []*ChecklistItem {
	var failed []*ChecklistItem
	for _, item := range c.items {
		if item.Outcome == OutcomeFail {
			failed = append(failed, item)
		}
	}
	return failed
}

// Snapshot returns a deep copy for diagnosis after the loop ends.
func (c *Checklist) Snapshot() []ChecklistItem {
	snap := make([]ChecklistItem, len(c.items))
	for i, item := range c.items {
		snap[i] = *item
	}
	return snap
}
