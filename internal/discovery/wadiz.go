package discovery

import (
	"context"
	"fmt"

	"github.com/JakeFAU/review-hub/internal/review"
)

const wadizQARoot = "https://www.wadiz.kr/web/campaign/detail/qa/"

// WadizTabs lists the Q&A tabs of the campaign a seed URL names. It needs no
// browser: the tabs follow from the project number.
type WadizTabs struct {
	// Tabs are the Q&A sections to visit, e.g. "satisfaction", "comment".
	Tabs []string
}

// DefaultWadizTabs are the sections that carry buyer feedback.
var DefaultWadizTabs = []string{"satisfaction", "comment"}

// Discover satisfies the orchestrator's discoverer contract.
func (w WadizTabs) Discover(ctx context.Context, seed string) Outcome {
	if err := ctx.Err(); err != nil {
		return failed(nil, 0, err)
	}
	no, ok := review.WadizProjectNo(seed)
	if !ok {
		return failed(nil, 0, fmt.Errorf("no wadiz project number in %q", seed))
	}
	tabs := w.Tabs
	if len(tabs) == 0 {
		tabs = DefaultWadizTabs
	}
	items := make([]string, 0, len(tabs))
	for _, t := range tabs {
		items = append(items, wadizQARoot+no+"/"+t)
	}
	return Outcome{Status: StatusOK, Items: items, Pages: 1}
}
